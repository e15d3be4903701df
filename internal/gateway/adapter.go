package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
)

// Adapter is implemented once per payment provider
type Adapter interface {
	Gateway() types.GatewayType

	// ParseEvent verifies and normalizes a raw webhook delivery. Provider event
	// types the engine does not handle come back with Kind unknown, not an error.
	ParseEvent(ctx context.Context, payload []byte, headers http.Header) (Event, error)

	// CancelSubscription stops billing of profileID at the provider
	CancelSubscription(ctx context.Context, profileID string) error

	// AttemptCharge charges the next due amount of profileID out of band
	AttemptCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// SupportsRetry reports whether AttemptCharge is available for this provider
	SupportsRetry() bool
}

type ChargeRequest struct {
	SubscriptionID string
	ProfileID      string
	Amount         decimal.Decimal
	Currency       string
	// IdempotencyKey is forwarded to providers that deduplicate charge requests
	IdempotencyKey string
}

type ChargeResult struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	ChargedAt     time.Time
}
