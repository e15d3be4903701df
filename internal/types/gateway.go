package types

import (
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

// GatewayType names the payment provider a subscription bills through
type GatewayType string

const (
	GatewayTypePayPal GatewayType = "paypal"
	GatewayTypeStripe GatewayType = "stripe"
	// GatewayTypeManual accepts events already in the normalized shape, used by
	// operators replaying events and by providers without a dedicated adapter
	GatewayTypeManual GatewayType = "manual"
)

var GatewayTypes = []GatewayType{
	GatewayTypePayPal,
	GatewayTypeStripe,
	GatewayTypeManual,
}

func (g GatewayType) String() string {
	return string(g)
}

func (g GatewayType) Validate() error {
	if !lo.Contains(GatewayTypes, g) {
		return ierr.NewError("invalid gateway").
			WithHint("Unsupported payment gateway").
			WithReportableDetails(map[string]any{
				"gateway": g,
				"allowed": GatewayTypes,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GatewayEventKind is the normalized kind of an inbound gateway event
type GatewayEventKind string

const (
	GatewayEventSale                      GatewayEventKind = "sale"
	GatewayEventSaleRefunded              GatewayEventKind = "sale.refunded"
	GatewayEventSubscriptionActivated     GatewayEventKind = "subscription.activated"
	GatewayEventSubscriptionCancelled     GatewayEventKind = "subscription.cancelled"
	GatewayEventSubscriptionSuspended     GatewayEventKind = "subscription.suspended"
	GatewayEventSubscriptionPaymentFailed GatewayEventKind = "subscription.payment_failed"
	GatewayEventSubscriptionExpired       GatewayEventKind = "subscription.expired"
	GatewayEventUnknown                   GatewayEventKind = "unknown"
)

// SaleState is the resource state carried by a sale event
type SaleState string

const (
	SaleStateCompleted SaleState = "completed"
	SaleStatePending   SaleState = "pending"
	SaleStateDenied    SaleState = "denied"
	SaleStateRefunded  SaleState = "refunded"
)

// IsDeclined reports whether the sale was rejected by the gateway
func (s SaleState) IsDeclined() bool {
	return s == SaleStateDenied
}

// DispatchOutcome is the result of routing one gateway event
type DispatchOutcome string

const (
	// DispatchOutcomeProcessed means the event changed state or was an idempotent replay
	DispatchOutcomeProcessed DispatchOutcome = "processed"
	// DispatchOutcomeIgnored events are acknowledged without any state change
	DispatchOutcomeIgnored DispatchOutcome = "ignored"
	// DispatchOutcomeFailed events are reported back so the gateway redelivers them
	DispatchOutcomeFailed DispatchOutcome = "failed"
)

// GatewayEventFilter filters the gateway event log
type GatewayEventFilter struct {
	*QueryFilter

	Gateway        GatewayType     `json:"gateway,omitempty" form:"gateway"`
	SubscriptionID string          `json:"subscription_id,omitempty" form:"subscription_id"`
	Outcome        DispatchOutcome `json:"outcome,omitempty" form:"outcome"`
}

func NewGatewayEventFilter() *GatewayEventFilter {
	return &GatewayEventFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *GatewayEventFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_LIMIT
	}
	return f.QueryFilter.GetLimit()
}

func (f *GatewayEventFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *GatewayEventFilter) IsUnlimited() bool {
	return f.QueryFilter != nil && f.QueryFilter.IsUnlimited()
}
