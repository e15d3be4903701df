package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const signatureHeader = "Stripe-Signature"

// Stripe event types the engine reacts to
const (
	eventInvoicePaid                  = "invoice.paid"
	eventInvoicePaymentFailed         = "invoice.payment_failed"
	eventInvoicePaymentActionRequired = "invoice.payment_action_required"
	eventChargeRefunded               = "charge.refunded"
	eventSubscriptionDeleted          = "customer.subscription.deleted"
	eventSubscriptionUpdated          = "customer.subscription.updated"
)

// zero decimal currencies are sent in major units
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// chargeInvoice reads charge.invoice, which API versions before basil still
// send. The SDK charge type no longer carries it.
type chargeInvoice struct {
	Invoice string `json:"invoice"`
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil || inv.Parent.SubscriptionDetails.Subscription == nil {
		return ""
	}
	return inv.Parent.SubscriptionDetails.Subscription.ID
}

// ParseEvent verifies the Stripe-Signature header when a webhook secret is set
// and normalizes the event
func (a *Adapter) ParseEvent(_ context.Context, payload []byte, headers http.Header) (gateway.Event, error) {
	var event stripe.Event
	if a.webhookSecret != "" {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, headers.Get(signatureHeader), a.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Stripe webhook signature verification failed").
				Mark(ierr.ErrValidation)
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Stripe event payload is not valid JSON").
			Mark(ierr.ErrValidation)
	}

	evt, err := normalize(&event)
	if err != nil {
		return nil, err
	}

	a.logger.Debugw("normalized stripe event",
		"event_id", event.ID,
		"event_type", event.Type,
		"kind", evt.Kind(),
		"resource_id", evt.ResourceID())

	return evt.WithRaw(payload), nil
}

func normalize(event *stripe.Event) (*gateway.NormalizedEvent, error) {
	evt := &gateway.NormalizedEvent{
		EventID:     event.ID,
		GatewayType: types.GatewayTypeStripe,
		EventKind:   types.GatewayEventUnknown,
	}

	if event.Data == nil {
		return evt, nil
	}
	raw := event.Data.Raw

	switch string(event.Type) {
	case eventInvoicePaid, eventInvoicePaymentFailed, eventInvoicePaymentActionRequired:
		var inv stripe.Invoice
		if err := decode(raw, &inv, event); err != nil {
			return nil, err
		}
		amount := inv.AmountPaid
		state := types.SaleStateCompleted
		switch string(event.Type) {
		case eventInvoicePaymentFailed:
			state, amount = types.SaleStateDenied, inv.AmountDue
		case eventInvoicePaymentActionRequired:
			state, amount = types.SaleStatePending, inv.AmountDue
		}
		currency := string(inv.Currency)
		evt.ResourceType = "sale"
		evt.EventKind = types.GatewayEventSale
		evt.Resource = gateway.Resource{
			ID:                 inv.ID,
			State:              state,
			Amount:             fromMinorUnits(amount, currency),
			Currency:           strings.ToUpper(currency),
			CreateTime:         unixTime(inv.Created, event.Created),
			BillingAgreementID: invoiceSubscriptionID(&inv),
		}

	case eventChargeRefunded:
		var ch stripe.Charge
		if err := decode(raw, &ch, event); err != nil {
			return nil, err
		}
		var ref chargeInvoice
		if err := decode(raw, &ref, event); err != nil {
			return nil, err
		}
		currency := string(ch.Currency)
		evt.ResourceType = "sale"
		evt.EventKind = types.GatewayEventSaleRefunded
		evt.Resource = gateway.Resource{
			ID:            ch.ID,
			State:         types.SaleStateRefunded,
			Amount:        fromMinorUnits(ch.AmountRefunded, currency),
			Currency:      strings.ToUpper(currency),
			CreateTime:    unixTime(ch.Created, event.Created),
			TransactionID: ref.Invoice,
		}

	case eventSubscriptionDeleted, eventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := decode(raw, &sub, event); err != nil {
			return nil, err
		}
		evt.ResourceType = "subscription"
		evt.EventKind = subscriptionKind(string(event.Type), sub.Status)
		evt.Resource = gateway.Resource{
			ID:         sub.ID,
			CreateTime: unixTime(event.Created, sub.Created),
		}
	}

	return evt, nil
}

func subscriptionKind(eventType string, status stripe.SubscriptionStatus) types.GatewayEventKind {
	if eventType == eventSubscriptionDeleted {
		return types.GatewayEventSubscriptionCancelled
	}
	switch status {
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return types.GatewayEventSubscriptionPaymentFailed
	case stripe.SubscriptionStatusPaused:
		return types.GatewayEventSubscriptionSuspended
	case stripe.SubscriptionStatusActive:
		return types.GatewayEventSubscriptionActivated
	case stripe.SubscriptionStatusIncompleteExpired:
		return types.GatewayEventSubscriptionExpired
	}
	return types.GatewayEventUnknown
}

func decode(raw json.RawMessage, v any, event *stripe.Event) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return ierr.WithError(err).
			WithHint("Stripe event object could not be decoded").
			WithReportableDetails(map[string]any{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func fromMinorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

func toMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func unixTime(primary, fallback int64) time.Time {
	if primary == 0 {
		primary = fallback
	}
	if primary == 0 {
		return time.Time{}
	}
	return time.Unix(primary, 0).UTC()
}
