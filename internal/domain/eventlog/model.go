package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flexprice/recurring/internal/types"
)

// GatewayEvent records one inbound gateway event and what the dispatcher did with it.
// The log is for operators, dispatch never reads it back.
type GatewayEvent struct {
	ID             string                 `db:"id" json:"id"`
	TenantID       string                 `db:"tenant_id" json:"tenant_id"`
	EnvironmentID  string                 `db:"environment_id" json:"environment_id"`
	Gateway        types.GatewayType      `db:"gateway" json:"gateway"`
	GatewayEventID string                 `db:"gateway_event_id" json:"gateway_event_id"`
	Kind           types.GatewayEventKind `db:"kind" json:"kind"`
	ResourceID     string                 `db:"resource_id" json:"resource_id"`
	SubscriptionID string                 `db:"subscription_id" json:"subscription_id"`
	Outcome        types.DispatchOutcome  `db:"outcome" json:"outcome"`
	Reason         string                 `db:"reason" json:"reason"`
	Payload        json.RawMessage        `db:"payload" json:"payload,omitempty"`
	ReceivedAt     time.Time              `db:"received_at" json:"received_at"`
}

type Repository interface {
	Create(ctx context.Context, event *GatewayEvent) error
	List(ctx context.Context, filter *types.GatewayEventFilter) ([]*GatewayEvent, error)
	Count(ctx context.Context, filter *types.GatewayEventFilter) (int, error)
}
