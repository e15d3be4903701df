package testutil

import (
	"context"
	"net/http"
	"sync"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
)

var _ gateway.Adapter = (*FakeAdapter)(nil)

// FakeAdapter is a scriptable gateway adapter. Events are parsed in the normalized
// shape, charges and cancels are recorded and answered from the configured funcs.
type FakeAdapter struct {
	mu sync.Mutex

	gatewayType types.GatewayType
	retry       bool

	// ChargeFunc answers AttemptCharge. The default succeeds with a fresh transaction id.
	ChargeFunc func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
	// CancelFunc answers CancelSubscription. The default succeeds.
	CancelFunc func(ctx context.Context, profileID string) error

	charges []gateway.ChargeRequest
	cancels []string
}

func NewFakeAdapter(gatewayType types.GatewayType, supportsRetry bool) *FakeAdapter {
	return &FakeAdapter{
		gatewayType: gatewayType,
		retry:       supportsRetry,
	}
}

func (f *FakeAdapter) Gateway() types.GatewayType {
	return f.gatewayType
}

func (f *FakeAdapter) ParseEvent(_ context.Context, payload []byte, _ http.Header) (gateway.Event, error) {
	return gateway.ParseNormalizedEvent(f.gatewayType, payload)
}

func (f *FakeAdapter) CancelSubscription(ctx context.Context, profileID string) error {
	f.mu.Lock()
	f.cancels = append(f.cancels, profileID)
	fn := f.CancelFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, profileID)
	}
	return nil
}

func (f *FakeAdapter) AttemptCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	f.mu.Lock()
	f.charges = append(f.charges, req)
	fn := f.ChargeFunc
	f.mu.Unlock()

	if !f.retry {
		return nil, ierr.NewError("retry not supported").
			Mark(ierr.ErrInvalidOperation)
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return &gateway.ChargeResult{
		TransactionID: types.GenerateUUIDWithPrefix("txn"),
		Amount:        req.Amount,
		Currency:      req.Currency,
		ChargedAt:     time.Now().UTC(),
	}, nil
}

func (f *FakeAdapter) SupportsRetry() bool {
	return f.retry
}

// Charges returns the charge requests received so far
func (f *FakeAdapter) Charges() []gateway.ChargeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.ChargeRequest(nil), f.charges...)
}

// Cancels returns the profile ids cancelled so far
func (f *FakeAdapter) Cancels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancels...)
}

// Reset forgets recorded calls and scripted answers
func (f *FakeAdapter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = nil
	f.cancels = nil
	f.ChargeFunc = nil
	f.CancelFunc = nil
}

// SaleEvent builds a normalized sale event for tests
func SaleEvent(gw types.GatewayType, profileID, transactionID string, state types.SaleState, amount decimal.Decimal, currency string, at time.Time) *gateway.NormalizedEvent {
	return &gateway.NormalizedEvent{
		EventID:      types.GenerateUUIDWithPrefix("evt"),
		GatewayType:  gw,
		ResourceType: "sale",
		Resource: gateway.Resource{
			ID:                 transactionID,
			State:              state,
			Amount:             amount,
			Currency:           currency,
			CreateTime:         at,
			BillingAgreementID: profileID,
		},
	}
}

// SubscriptionEvent builds a normalized subscription event for tests
func SubscriptionEvent(gw types.GatewayType, profileID string, kind types.GatewayEventKind, at time.Time) *gateway.NormalizedEvent {
	return &gateway.NormalizedEvent{
		EventID:      types.GenerateUUIDWithPrefix("evt"),
		GatewayType:  gw,
		ResourceType: "subscription",
		EventKind:    kind,
		Resource: gateway.Resource{
			ID:         profileID,
			CreateTime: at,
		},
	}
}
