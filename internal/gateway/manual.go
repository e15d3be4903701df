package gateway

import (
	"context"
	"net/http"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
)

// ManualAdapter accepts events that are already normalized. It has no remote
// side, so cancellation is local only and charges are not supported.
type ManualAdapter struct{}

func NewManualAdapter() *ManualAdapter {
	return &ManualAdapter{}
}

func (m *ManualAdapter) Gateway() types.GatewayType {
	return types.GatewayTypeManual
}

func (m *ManualAdapter) ParseEvent(_ context.Context, payload []byte, _ http.Header) (Event, error) {
	return ParseNormalizedEvent(types.GatewayTypeManual, payload)
}

func (m *ManualAdapter) CancelSubscription(context.Context, string) error {
	return nil
}

func (m *ManualAdapter) AttemptCharge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return nil, ierr.NewError("manual gateway cannot charge").
		WithHint("Retrying a charge is not supported for manual subscriptions").
		Mark(ierr.ErrInvalidOperation)
}

func (m *ManualAdapter) SupportsRetry() bool {
	return false
}
