package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var saleEvents = map[string]types.SaleState{
	"PAYMENT.SALE.COMPLETED": types.SaleStateCompleted,
	"PAYMENT.SALE.PENDING":   types.SaleStatePending,
	"PAYMENT.SALE.DENIED":    types.SaleStateDenied,
	"PAYMENT.SALE.REFUNDED":  types.SaleStateRefunded,
	"PAYMENT.SALE.REVERSED":  types.SaleStateRefunded,
}

var subscriptionEvents = map[string]types.GatewayEventKind{
	"BILLING.SUBSCRIPTION.ACTIVATED":      types.GatewayEventSubscriptionActivated,
	"BILLING.SUBSCRIPTION.CANCELLED":      types.GatewayEventSubscriptionCancelled,
	"BILLING.SUBSCRIPTION.SUSPENDED":      types.GatewayEventSubscriptionSuspended,
	"BILLING.SUBSCRIPTION.PAYMENT.FAILED": types.GatewayEventSubscriptionPaymentFailed,
	"BILLING.SUBSCRIPTION.EXPIRED":        types.GatewayEventSubscriptionExpired,
}

// verification headers PayPal sends with every delivery
var transmissionHeaders = []string{
	"PAYPAL-AUTH-ALGO",
	"PAYPAL-CERT-URL",
	"PAYPAL-TRANSMISSION-ID",
	"PAYPAL-TRANSMISSION-SIG",
	"PAYPAL-TRANSMISSION-TIME",
}

type webhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	CreateTime   time.Time       `json:"create_time"`
	Resource     json.RawMessage `json:"resource"`
}

type amount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type saleResource struct {
	ID                 string    `json:"id"`
	State              string    `json:"state"`
	Amount             amount    `json:"amount"`
	CreateTime         time.Time `json:"create_time"`
	BillingAgreementID string    `json:"billing_agreement_id"`
	// set on refund resources
	SaleID string `json:"sale_id"`
}

type subscriptionResource struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	UpdateTime time.Time `json:"update_time"`
}

// ParseEvent verifies the delivery with PayPal when a webhook id is configured
// and normalizes sale and billing subscription events
func (a *Adapter) ParseEvent(ctx context.Context, payload []byte, headers http.Header) (gateway.Event, error) {
	var raw webhookEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ierr.WithError(err).
			WithHint("PayPal event payload is not valid JSON").
			Mark(ierr.ErrValidation)
	}

	if a.cfg.WebhookID != "" {
		if err := a.verify(ctx, payload, headers); err != nil {
			return nil, err
		}
	}

	evt, err := normalize(&raw)
	if err != nil {
		return nil, err
	}
	return evt.WithRaw(payload), nil
}

func normalize(raw *webhookEvent) (*gateway.NormalizedEvent, error) {
	evt := &gateway.NormalizedEvent{
		EventID:      raw.ID,
		GatewayType:  types.GatewayTypePayPal,
		ResourceType: strings.ToLower(raw.ResourceType),
		EventKind:    types.GatewayEventUnknown,
	}

	if state, ok := saleEvents[raw.EventType]; ok {
		var sale saleResource
		if err := decodeResource(raw, &sale); err != nil {
			return nil, err
		}
		total, err := decimal.NewFromString(lo.Ternary(sale.Amount.Total == "", "0", sale.Amount.Total))
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("PayPal sale amount is not a number").
				WithReportableDetails(map[string]any{"event_id": raw.ID, "amount": sale.Amount.Total}).
				Mark(ierr.ErrValidation)
		}

		evt.ResourceType = "sale"
		evt.EventKind = types.GatewayEventSale
		if state == types.SaleStateRefunded {
			evt.EventKind = types.GatewayEventSaleRefunded
		}
		evt.Resource = gateway.Resource{
			ID:                 sale.ID,
			State:              state,
			Amount:             total.Abs(),
			Currency:           sale.Amount.Currency,
			CreateTime:         lo.Ternary(sale.CreateTime.IsZero(), raw.CreateTime, sale.CreateTime),
			BillingAgreementID: sale.BillingAgreementID,
			TransactionID:      sale.SaleID,
		}
		return evt, nil
	}

	if kind, ok := subscriptionEvents[raw.EventType]; ok {
		var sub subscriptionResource
		if err := decodeResource(raw, &sub); err != nil {
			return nil, err
		}
		evt.ResourceType = "subscription"
		evt.EventKind = kind
		evt.Resource = gateway.Resource{
			ID:         sub.ID,
			CreateTime: lo.Ternary(raw.CreateTime.IsZero(), sub.UpdateTime, raw.CreateTime),
		}
	}

	return evt, nil
}

func decodeResource(raw *webhookEvent, v any) error {
	if err := json.Unmarshal(raw.Resource, v); err != nil {
		return ierr.WithError(err).
			WithHint("PayPal event resource could not be decoded").
			WithReportableDetails(map[string]any{
				"event_id":   raw.ID,
				"event_type": raw.EventType,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

func (a *Adapter) verify(ctx context.Context, payload []byte, headers http.Header) error {
	missing := lo.Filter(transmissionHeaders, func(h string, _ int) bool {
		return headers.Get(h) == ""
	})
	if len(missing) > 0 {
		return ierr.NewError("paypal transmission headers missing").
			WithHint("PayPal webhook signature headers are required").
			WithReportableDetails(map[string]any{"missing": missing}).
			Mark(ierr.ErrValidation)
	}

	resp, err := a.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", verifyRequest{
		AuthAlgo:         headers.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          headers.Get("PAYPAL-CERT-URL"),
		TransmissionID:   headers.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: headers.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        a.cfg.WebhookID,
		WebhookEvent:     payload,
	})
	if err != nil {
		return gatewayError(err, "verify_webhook", headers.Get("PAYPAL-TRANSMISSION-ID"))
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil || result.VerificationStatus != "SUCCESS" {
		return ierr.NewError("paypal webhook signature verification failed").
			WithHint("PayPal could not verify this delivery").
			WithReportableDetails(map[string]any{"verification_status": result.VerificationStatus}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
