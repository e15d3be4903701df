package gateway

import (
	"encoding/json"
	"strings"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
)

// Event is a gateway notification normalized by an adapter. The dispatcher and the
// classifier only ever see this interface, never provider payloads.
type Event interface {
	// ID is the gateway's event id, empty when the provider has none
	ID() string
	Gateway() types.GatewayType
	Kind() types.GatewayEventKind
	// ResourceID is the id of the sale or subscription the event is about
	ResourceID() string
	// ProfileID is the recurring profile the resource belongs to
	ProfileID() string
	// TransactionID is the payment reference used as the renewal idempotency key
	TransactionID() string
	State() types.SaleState
	Amount() decimal.Decimal
	Currency() string
	Timestamp() time.Time
	// Payload is the raw provider body, kept for the event log
	Payload() []byte
}

// Resource is the normalized resource block of an event
type Resource struct {
	ID                 string          `json:"id"`
	State              types.SaleState `json:"state"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	CreateTime         time.Time       `json:"create_time"`
	BillingAgreementID string          `json:"billing_agreement_id"`
	// TransactionID overrides ID as the payment reference, e.g. the sale a refund belongs to
	TransactionID string `json:"transaction_id,omitempty"`
}

// NormalizedEvent is the internal gateway event shape. Adapters build it from
// provider payloads, the manual gateway accepts it as is.
type NormalizedEvent struct {
	EventID      string                 `json:"id"`
	GatewayType  types.GatewayType      `json:"gateway"`
	ResourceType string                 `json:"resource_type"`
	EventKind    types.GatewayEventKind `json:"event_kind,omitempty"`
	Resource     Resource               `json:"resource"`

	raw []byte
}

var _ Event = (*NormalizedEvent)(nil)

// ParseNormalizedEvent decodes the normalized wire shape
func ParseNormalizedEvent(gateway types.GatewayType, payload []byte) (*NormalizedEvent, error) {
	var evt NormalizedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Event payload is not valid JSON").
			Mark(ierr.ErrValidation)
	}
	if evt.ResourceType == "" && evt.EventKind == "" {
		return nil, ierr.NewError("resource_type is required").
			WithHint("Event must carry a resource_type or event_kind").
			Mark(ierr.ErrValidation)
	}
	evt.GatewayType = gateway
	evt.raw = payload
	return &evt, nil
}

func (e *NormalizedEvent) ID() string                 { return e.EventID }
func (e *NormalizedEvent) Gateway() types.GatewayType { return e.GatewayType }
func (e *NormalizedEvent) ResourceID() string         { return e.Resource.ID }
func (e *NormalizedEvent) State() types.SaleState     { return types.SaleState(strings.ToLower(string(e.Resource.State))) }
func (e *NormalizedEvent) Amount() decimal.Decimal    { return e.Resource.Amount }
func (e *NormalizedEvent) Currency() string           { return strings.ToUpper(e.Resource.Currency) }
func (e *NormalizedEvent) Timestamp() time.Time       { return e.Resource.CreateTime }
func (e *NormalizedEvent) Payload() []byte            { return e.raw }

// Kind prefers an explicit event_kind and otherwise derives it from the resource type
func (e *NormalizedEvent) Kind() types.GatewayEventKind {
	if e.EventKind != "" {
		return e.EventKind
	}
	switch strings.ToLower(e.ResourceType) {
	case "sale", "payment", "charge":
		if e.State() == types.SaleStateRefunded {
			return types.GatewayEventSaleRefunded
		}
		return types.GatewayEventSale
	case "refund":
		return types.GatewayEventSaleRefunded
	}
	return types.GatewayEventUnknown
}

// ProfileID is the billing agreement for sales and the resource itself for subscription events
func (e *NormalizedEvent) ProfileID() string {
	if e.Resource.BillingAgreementID != "" {
		return e.Resource.BillingAgreementID
	}
	if strings.HasPrefix(string(e.Kind()), "subscription.") {
		return e.Resource.ID
	}
	return ""
}

func (e *NormalizedEvent) TransactionID() string {
	if e.Resource.TransactionID != "" {
		return e.Resource.TransactionID
	}
	return e.Resource.ID
}

// WithRaw keeps the provider payload an adapter normalized this event from
func (e *NormalizedEvent) WithRaw(payload []byte) *NormalizedEvent {
	e.raw = payload
	return e
}
