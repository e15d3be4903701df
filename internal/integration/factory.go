package integration

import (
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/integration/paypal"
	"github.com/flexprice/recurring/internal/integration/stripe"
	"github.com/flexprice/recurring/internal/logger"
)

// NewRegistry registers the manual gateway plus every provider enabled in config
func NewRegistry(cfg *config.Configuration, client httpclient.Client, log *logger.Logger) (*gateway.Registry, error) {
	registry := gateway.NewRegistry(gateway.NewManualAdapter())

	if cfg.Gateway.Stripe.Enabled {
		adapter, err := stripe.NewAdapter(cfg.Gateway.Stripe, log)
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	}

	if cfg.Gateway.PayPal.Enabled {
		adapter, err := paypal.NewAdapter(cfg.Gateway.PayPal, client, log)
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	}

	log.Infow("payment gateways registered", "gateways", registry.Gateways())
	return registry, nil
}
