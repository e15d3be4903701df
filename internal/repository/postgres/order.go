package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/recurring/internal/domain/order"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
)

const orderColumns = `
	id, tenant_id, subscription_id, kind, gateway, amount, tax, currency, order_status,
	transaction_id, date, status, created_at, updated_at,
	COALESCE(created_by, '') AS created_by, COALESCE(updated_by, '') AS updated_by`

type ledgerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewLedgerRepository(db *postgres.DB, logger *logger.Logger) order.Ledger {
	return &ledgerRepository{db: db, logger: logger}
}

func (r *ledgerRepository) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND tenant_id = $2 AND status <> $3`

	var o order.Order
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &o, query, id, types.GetTenantID(ctx), types.StatusDeleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Order %s not found", id).
				WithReportableDetails(map[string]any{"order_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get order").
			Mark(ierr.ErrDatabase)
	}
	return &o, nil
}

func (r *ledgerRepository) CreateOrder(ctx context.Context, o *order.Order) error {
	query := `
	INSERT INTO orders (
		id, tenant_id, subscription_id, kind, gateway, amount, tax, currency, order_status,
		transaction_id, date, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		:id, :tenant_id, :subscription_id, :kind, :gateway, :amount, :tax, :currency, :order_status,
		:transaction_id, :date, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, o); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("Transaction %s is already recorded", o.TransactionID).
				WithReportableDetails(map[string]any{
					"gateway":        o.Gateway,
					"transaction_id": o.TransactionID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create order").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *ledgerRepository) UpdateOrderStatus(ctx context.Context, id string, status types.OrderStatus) error {
	return r.updateOne(ctx, id, `order_status = $1`, status)
}

func (r *ledgerRepository) SetTransactionID(ctx context.Context, id string, transactionID string) error {
	err := r.updateOne(ctx, id, `transaction_id = $1`, transactionID)
	if err != nil && isUniqueViolation(err) {
		return ierr.WithError(err).
			WithHintf("Transaction %s is already recorded", transactionID).
			Mark(ierr.ErrAlreadyExists)
	}
	return err
}

func (r *ledgerRepository) updateOne(ctx context.Context, id string, set string, value interface{}) error {
	query := `UPDATE orders SET ` + set + `, updated_at = $2, updated_by = $3 WHERE id = $4 AND tenant_id = $5`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, value, time.Now().UTC(), types.GetUserID(ctx), id, types.GetTenantID(ctx))
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return ierr.WithError(err).
			WithHint("Failed to update order").
			Mark(ierr.ErrDatabase)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ierr.NewErrorf("order %s not found", id).
			WithHintf("Order %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *ledgerRepository) AddOrderNote(ctx context.Context, id string, text string) error {
	note := &order.Note{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER_NOTE),
		TenantID:  types.GetTenantID(ctx),
		OrderID:   id,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	query := `INSERT INTO order_notes (id, tenant_id, order_id, text, created_at) VALUES (:id, :tenant_id, :order_id, :text, :created_at)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, note); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to add order note").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *ledgerRepository) FindByTransactionID(ctx context.Context, gateway types.GatewayType, transactionID string) (*order.Order, error) {
	query := `SELECT ` + orderColumns + `
	FROM orders
	WHERE tenant_id = $1 AND gateway = $2 AND transaction_id = $3 AND status <> $4
	LIMIT 1`

	var o order.Order
	err := r.db.GetQuerier(ctx).GetContext(ctx, &o, query, types.GetTenantID(ctx), gateway, transactionID, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("No order paid by transaction %s", transactionID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to look up order by transaction").
			Mark(ierr.ErrDatabase)
	}
	return &o, nil
}

func (r *ledgerRepository) CountRenewals(ctx context.Context, subscriptionID string) (int, error) {
	query := `
	SELECT COUNT(*) FROM orders
	WHERE tenant_id = $1 AND subscription_id = $2 AND kind = $3 AND status <> $4`

	var count int
	err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, types.GetTenantID(ctx), subscriptionID, types.OrderKindRenewal, types.StatusDeleted)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count renewals").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}
