package integration

import (
	"testing"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Gateway.Stripe = config.StripeConfig{Enabled: true, SecretKey: "sk_test_123"}
	cfg.Gateway.PayPal = config.PayPalConfig{Enabled: true, BaseURL: "https://paypal.test", ClientID: "id", ClientSecret: "secret"}

	client := httpclient.NewDefaultClient(httpclient.DefaultClientConfig(), nil)
	registry, err := NewRegistry(cfg, client, logger.NewNopLogger())
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.GatewayType{types.GatewayTypeManual, types.GatewayTypeStripe, types.GatewayTypePayPal}, registry.Gateways())
}

func TestNewRegistryRejectsIncompleteCredentials(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Gateway.Stripe = config.StripeConfig{Enabled: true}

	_, err := NewRegistry(cfg, nil, logger.NewNopLogger())
	assert.True(t, ierr.IsValidation(err))
}
