package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

const subscriptionColumns = `
	id, tenant_id, customer_id, product_id, price_id, parent_payment_id, gateway, profile_id,
	period, period_count, currency, initial_amount, recurring_amount, initial_tax, recurring_tax,
	initial_tax_rate, recurring_tax_rate, bill_times, subscription_status, created, expiration,
	trial_end, version, status, created_at, updated_at,
	COALESCE(created_by, '') AS created_by, COALESCE(updated_by, '') AS updated_by`

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	INSERT INTO subscriptions (
		id, tenant_id, customer_id, product_id, price_id, parent_payment_id, gateway, profile_id,
		period, period_count, currency, initial_amount, recurring_amount, initial_tax, recurring_tax,
		initial_tax_rate, recurring_tax_rate, bill_times, subscription_status, created, expiration,
		trial_end, version, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		$21, $22, $23, $24, $25, $26, $27, $28
	)`

	if sub.Version == 0 {
		sub.Version = 1
	}

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		sub.ID,
		sub.TenantID,
		sub.CustomerID,
		sub.ProductID,
		sub.PriceID,
		sub.ParentPaymentID,
		sub.Gateway,
		sub.ProfileID,
		sub.Period,
		sub.PeriodCount,
		sub.Currency,
		sub.InitialAmount,
		sub.RecurringAmount,
		sub.InitialTax,
		sub.RecurringTax,
		sub.InitialTaxRate,
		sub.RecurringTaxRate,
		sub.BillTimes,
		sub.SubscriptionStatus,
		sub.Created,
		sub.Expiration,
		sub.TrialEnd,
		sub.Version,
		sub.Status,
		sub.CreatedAt,
		sub.UpdatedAt,
		sub.CreatedBy,
		sub.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("Subscription %s already exists", sub.ID).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE id = $1 AND tenant_id = $2 AND status <> $3`

	var sub subscription.Subscription
	err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription %s not found", id).
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

// Update is a compare and swap on version
func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	UPDATE subscriptions SET
		customer_id = $1, product_id = $2, price_id = $3, profile_id = $4, period = $5,
		period_count = $6, currency = $7, recurring_amount = $8, recurring_tax = $9,
		recurring_tax_rate = $10, bill_times = $11, subscription_status = $12, expiration = $13,
		trial_end = $14, status = $15, updated_at = $16, updated_by = $17, version = version + 1
	WHERE id = $18 AND tenant_id = $19 AND version = $20`

	now := time.Now().UTC()
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		sub.CustomerID,
		sub.ProductID,
		sub.PriceID,
		sub.ProfileID,
		sub.Period,
		sub.PeriodCount,
		sub.Currency,
		sub.RecurringAmount,
		sub.RecurringTax,
		sub.RecurringTaxRate,
		sub.BillTimes,
		sub.SubscriptionStatus,
		sub.Expiration,
		sub.TrialEnd,
		sub.Status,
		now,
		types.GetUserID(ctx),
		sub.ID,
		sub.TenantID,
		sub.Version,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewErrorf("subscription %s changed since version %d", sub.ID, sub.Version).
			WithHint("Subscription was modified concurrently, please retry").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"version":         sub.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version++
	sub.UpdatedAt = now
	sub.UpdatedBy = types.GetUserID(ctx)
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	where, args := subscriptionWhere(ctx, filter)
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ` + where + ` ORDER BY created_at DESC, id`

	if filter != nil && !filter.IsUnlimited() {
		args = append(args, filter.GetLimit(), filter.GetOffset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var subs []*subscription.Subscription
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	where, args := subscriptionWhere(ctx, filter)

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM subscriptions `+where, args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *subscriptionRepository) ListByProfileID(ctx context.Context, gateway types.GatewayType, profileID string) ([]*subscription.Subscription, error) {
	if profileID == "" {
		return nil, nil
	}
	query := `SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE tenant_id = $1 AND gateway = $2 AND profile_id = $3 AND status <> $4
	ORDER BY created_at, id`

	var subs []*subscription.Subscription
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &subs, query, types.GetTenantID(ctx), gateway, profileID, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to look up subscription by profile").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) ListDuplicateProfiles(ctx context.Context) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
	FROM subscriptions s
	WHERE s.tenant_id = $1 AND s.status <> $2 AND s.profile_id <> ''
	AND (s.gateway, s.profile_id) IN (
		SELECT gateway, profile_id FROM subscriptions
		WHERE tenant_id = $1 AND status <> $2 AND profile_id <> ''
		GROUP BY gateway, profile_id
		HAVING COUNT(*) > 1
	)
	ORDER BY s.gateway, s.profile_id, s.created_at, s.id`

	var subs []*subscription.Subscription
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &subs, query, types.GetTenantID(ctx), types.StatusDeleted); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list duplicate profiles").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	settled := lo.Map(lo.Filter(types.SubscriptionStatuses, func(s types.SubscriptionStatus, _ int) bool {
		return s.IsSettled()
	}), func(s types.SubscriptionStatus, _ int) string { return string(s) })

	var tenants []string
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &tenants, `
	SELECT DISTINCT tenant_id FROM subscriptions
	WHERE status <> $1 AND NOT (subscription_status = ANY($2))
	ORDER BY tenant_id`, types.StatusDeleted, pq.Array(settled))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list tenants").
			Mark(ierr.ErrDatabase)
	}
	return tenants, nil
}

func subscriptionWhere(ctx context.Context, filter *types.SubscriptionFilter) (string, []interface{}) {
	conds := []string{"tenant_id = $1"}
	args := []interface{}{types.GetTenantID(ctx)}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}

	add("status = $%d", filter.GetStatus())
	if len(filter.SubscriptionIDs) > 0 {
		add("id = ANY($%d)", pq.Array(filter.SubscriptionIDs))
	}
	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.ProductID != "" {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.Gateway != "" {
		add("gateway = $%d", filter.Gateway)
	}
	if filter.ProfileID != "" {
		add("profile_id = $%d", filter.ProfileID)
	}
	if len(filter.SubscriptionStatus) > 0 {
		add("subscription_status = ANY($%d)", pq.Array(lo.Map(filter.SubscriptionStatus, func(s types.SubscriptionStatus, _ int) string {
			return string(s)
		})))
	}
	if filter.ExpiringBefore != nil {
		add("expiration < $%d", *filter.ExpiringBefore)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
