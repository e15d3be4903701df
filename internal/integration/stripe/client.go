package stripe

import (
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stripe/stripe-go/v82"
)

// Adapter implements gateway.Adapter for Stripe billing subscriptions
type Adapter struct {
	client        *stripe.Client
	webhookSecret string
	logger        *logger.Logger
}

// NewAdapter creates a Stripe adapter from the gateway configuration
func NewAdapter(cfg config.StripeConfig, log *logger.Logger) (*Adapter, error) {
	if cfg.SecretKey == "" {
		return nil, ierr.NewError("stripe secret key is required").
			WithHint("Set gateway.stripe.secret_key to enable Stripe").
			Mark(ierr.ErrValidation)
	}
	return newAdapter(stripe.NewClient(cfg.SecretKey, nil), cfg.WebhookSecret, log), nil
}

func newAdapter(client *stripe.Client, webhookSecret string, log *logger.Logger) *Adapter {
	return &Adapter{
		client:        client,
		webhookSecret: webhookSecret,
		logger:        log,
	}
}

func (a *Adapter) Gateway() types.GatewayType {
	return types.GatewayTypeStripe
}

func (a *Adapter) SupportsRetry() bool {
	return true
}

// gatewayError maps a Stripe API failure onto ErrGateway with the provider code attached
func gatewayError(err error, op string, resourceID string) error {
	details := map[string]any{
		"operation":   op,
		"resource_id": resourceID,
	}
	hint := "Stripe request failed"

	if stripeErr, ok := err.(*stripe.Error); ok {
		details["stripe_error_code"] = stripeErr.Code
		details["http_status"] = stripeErr.HTTPStatusCode
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined:
			hint = "The payment method on file was declined"
		case stripe.ErrorCodeAuthenticationRequired:
			hint = "Customer must authenticate the payment"
		case stripe.ErrorCodeResourceMissing:
			hint = "Stripe does not know this subscription"
		}
	}

	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrGateway)
}
