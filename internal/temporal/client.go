package temporal

import (
	"context"
	"crypto/tls"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"go.temporal.io/sdk/client"
)

// APIKeyProvider provides headers for API key authentication
type APIKeyProvider struct {
	APIKey    string
	Namespace string
}

// GetHeaders implements client.HeadersProvider
func (a *APIKeyProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	return map[string]string{
		"Authorization":      "Bearer " + a.APIKey,
		"temporal-namespace": a.Namespace,
	}, nil
}

// TemporalClient wraps the Temporal SDK client for application use.
type TemporalClient struct {
	Client client.Client
}

// NewTemporalClient dials the Temporal frontend. The API key header is only sent when a key is configured.
func NewTemporalClient(cfg *config.TemporalConfig, log *logger.Logger) (*TemporalClient, error) {
	clientOptions := client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log.GetTemporalLogger(),
	}

	if cfg.APIKey != "" {
		clientOptions.HeadersProvider = &APIKeyProvider{
			APIKey:    cfg.APIKey,
			Namespace: cfg.Namespace,
		}
	}

	if cfg.TLS {
		clientOptions.ConnectionOptions.TLS = &tls.Config{}
	}

	c, err := client.Dial(clientOptions)
	if err != nil {
		log.Errorw("failed to create temporal client", "address", cfg.Address, "error", err)
		return nil, ierr.WithError(err).
			WithHint("Could not connect to the workflow scheduler").
			Mark(ierr.ErrSystem)
	}

	log.Infow("temporal client created", "address", cfg.Address, "namespace", cfg.Namespace)
	return &TemporalClient{Client: c}, nil
}

// Close closes the underlying connection
func (c *TemporalClient) Close() {
	if c != nil && c.Client != nil {
		c.Client.Close()
	}
}
