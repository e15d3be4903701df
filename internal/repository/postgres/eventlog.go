package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flexprice/recurring/internal/domain/eventlog"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
)

type eventLogRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewEventLogRepository(db *postgres.DB, logger *logger.Logger) eventlog.Repository {
	return &eventLogRepository{db: db, logger: logger}
}

func (r *eventLogRepository) Create(ctx context.Context, e *eventlog.GatewayEvent) error {
	query := `
	INSERT INTO gateway_events (
		id, tenant_id, environment_id, gateway, gateway_event_id, kind, resource_id,
		subscription_id, outcome, reason, payload, received_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	// the column is jsonb, deliveries that are not JSON keep an empty object
	payload := "{}"
	if len(e.Payload) > 0 && json.Valid(e.Payload) {
		payload = string(e.Payload)
	}

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		e.ID,
		e.TenantID,
		e.EnvironmentID,
		e.Gateway,
		e.GatewayEventID,
		e.Kind,
		e.ResourceID,
		e.SubscriptionID,
		e.Outcome,
		e.Reason,
		payload,
		e.ReceivedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record gateway event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *eventLogRepository) List(ctx context.Context, filter *types.GatewayEventFilter) ([]*eventlog.GatewayEvent, error) {
	where, args := eventWhere(ctx, filter)
	query := `
	SELECT id, tenant_id, environment_id, gateway, gateway_event_id, kind, resource_id,
		subscription_id, outcome, reason, payload, received_at
	FROM gateway_events ` + where + ` ORDER BY received_at DESC, id`

	if filter != nil && !filter.IsUnlimited() {
		args = append(args, filter.GetLimit(), filter.GetOffset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.GetQuerier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list gateway events").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var events []*eventlog.GatewayEvent
	for rows.Next() {
		var e eventlog.GatewayEvent
		var payload []byte
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.EnvironmentID,
			&e.Gateway,
			&e.GatewayEventID,
			&e.Kind,
			&e.ResourceID,
			&e.SubscriptionID,
			&e.Outcome,
			&e.Reason,
			&payload,
			&e.ReceivedAt,
		); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to read gateway event").
				Mark(ierr.ErrDatabase)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list gateway events").
			Mark(ierr.ErrDatabase)
	}
	return events, nil
}

func (r *eventLogRepository) Count(ctx context.Context, filter *types.GatewayEventFilter) (int, error) {
	where, args := eventWhere(ctx, filter)

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM gateway_events `+where, args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count gateway events").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func eventWhere(ctx context.Context, filter *types.GatewayEventFilter) (string, []interface{}) {
	conds := []string{"tenant_id = $1"}
	args := []interface{}{types.GetTenantID(ctx)}

	if filter != nil {
		if filter.Gateway != "" {
			args = append(args, filter.Gateway)
			conds = append(conds, fmt.Sprintf("gateway = $%d", len(args)))
		}
		if filter.SubscriptionID != "" {
			args = append(args, filter.SubscriptionID)
			conds = append(conds, fmt.Sprintf("subscription_id = $%d", len(args)))
		}
		if filter.Outcome != "" {
			args = append(args, filter.Outcome)
			conds = append(conds, fmt.Sprintf("outcome = $%d", len(args)))
		}
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
