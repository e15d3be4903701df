package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/shopspring/decimal"
)

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type captureRequest struct {
	Note        string `json:"note"`
	CaptureType string `json:"capture_type"`
	Amount      money  `json:"amount"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *money `json:"amount"`
}

// CancelSubscription cancels the billing subscription at PayPal
func (a *Adapter) CancelSubscription(ctx context.Context, profileID string) error {
	_, err := a.call(ctx, http.MethodPost, fmt.Sprintf("/v1/billing/subscriptions/%s/cancel", profileID), map[string]string{
		"reason": "Cancelled by merchant",
	})
	if err != nil {
		a.logger.Errorw("failed to cancel paypal subscription",
			"error", err,
			"profile_id", profileID)
		return gatewayError(err, "cancel", profileID)
	}

	a.logger.Infow("cancelled paypal subscription", "profile_id", profileID)
	return nil
}

// AttemptCharge captures the outstanding balance of the billing subscription
func (a *Adapter) AttemptCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	body := captureRequest{
		Note:        "Retrying outstanding balance",
		CaptureType: "OUTSTANDING_BALANCE",
		Amount: money{
			CurrencyCode: strings.ToUpper(req.Currency),
			Value:        req.Amount.StringFixed(2),
		},
	}

	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"PayPal-Request-Id": req.IdempotencyKey}
	}

	resp, err := a.callWithHeaders(ctx, http.MethodPost, fmt.Sprintf("/v1/billing/subscriptions/%s/capture", req.ProfileID), body, headers)
	if err != nil {
		a.logger.Errorw("failed to capture paypal outstanding balance",
			"error", err,
			"profile_id", req.ProfileID,
			"subscription_id", req.SubscriptionID)
		return nil, gatewayError(err, "capture", req.ProfileID)
	}

	var capture captureResponse
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &capture); err != nil {
			return nil, ierr.WithError(err).
				WithHint("PayPal capture response could not be decoded").
				Mark(ierr.ErrGateway)
		}
	}
	if capture.ID == "" || strings.EqualFold(capture.Status, "DECLINED") {
		return nil, ierr.NewError("paypal capture was not completed").
			WithHint("The outstanding balance could not be collected").
			WithReportableDetails(map[string]any{
				"profile_id": req.ProfileID,
				"status":     capture.Status,
			}).
			Mark(ierr.ErrGateway)
	}

	result := &gateway.ChargeResult{
		TransactionID: capture.ID,
		Amount:        req.Amount,
		Currency:      strings.ToUpper(req.Currency),
		ChargedAt:     time.Now().UTC(),
	}
	if capture.Amount != nil {
		if v, err := decimal.NewFromString(capture.Amount.Value); err == nil {
			result.Amount = v
			result.Currency = strings.ToUpper(capture.Amount.CurrencyCode)
		}
	}
	return result, nil
}
