package stripe

import (
	"context"
	"strings"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/stripe/stripe-go/v82"
)

// CancelSubscription cancels the Stripe subscription immediately
func (a *Adapter) CancelSubscription(ctx context.Context, profileID string) error {
	_, err := a.client.V1Subscriptions.Cancel(ctx, profileID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		a.logger.Errorw("failed to cancel stripe subscription",
			"error", err,
			"profile_id", profileID)
		return gatewayError(err, "cancel", profileID)
	}

	a.logger.Infow("cancelled stripe subscription", "profile_id", profileID)
	return nil
}

// AttemptCharge pays the latest open invoice of the subscription with its default payment method
func (a *Adapter) AttemptCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	sub, err := a.client.V1Subscriptions.Retrieve(ctx, req.ProfileID, &stripe.SubscriptionRetrieveParams{
		Expand: []*string{stripe.String("latest_invoice")},
	})
	if err != nil {
		return nil, gatewayError(err, "retrieve_subscription", req.ProfileID)
	}

	inv := sub.LatestInvoice
	if inv == nil || inv.Status != stripe.InvoiceStatusOpen {
		details := map[string]any{"profile_id": req.ProfileID}
		if inv != nil {
			details["invoice_id"] = inv.ID
			details["invoice_status"] = inv.Status
		}
		return nil, ierr.NewError("no open invoice to charge").
			WithHint("The subscription has no outstanding invoice at Stripe").
			WithReportableDetails(details).
			Mark(ierr.ErrInvalidOperation)
	}

	if due := toMinorUnits(req.Amount, req.Currency); inv.AmountDue != due {
		a.logger.Warnw("stripe invoice amount differs from the next due amount",
			"invoice_id", inv.ID,
			"amount_due", inv.AmountDue,
			"expected", due)
	}

	params := &stripe.InvoicePayParams{}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	paid, err := a.client.V1Invoices.Pay(ctx, inv.ID, params)
	if err != nil {
		a.logger.Errorw("failed to pay stripe invoice",
			"error", err,
			"invoice_id", inv.ID,
			"subscription_id", req.SubscriptionID)
		return nil, gatewayError(err, "pay_invoice", inv.ID)
	}

	if paid.Status != stripe.InvoiceStatusPaid {
		return nil, ierr.NewError("stripe invoice was not paid").
			WithHint("The payment did not complete").
			WithReportableDetails(map[string]any{
				"invoice_id":     paid.ID,
				"invoice_status": paid.Status,
			}).
			Mark(ierr.ErrGateway)
	}

	return &gateway.ChargeResult{
		TransactionID: paid.ID,
		Amount:        fromMinorUnits(paid.AmountPaid, string(paid.Currency)),
		Currency:      strings.ToUpper(string(paid.Currency)),
		ChargedAt:     time.Now().UTC(),
	}, nil
}
