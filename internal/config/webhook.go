package config

import (
	"time"

	"github.com/flexprice/recurring/internal/types"
)

// Webhook configures outbound delivery of subscription lifecycle events
type Webhook struct {
	Enabled bool                           `mapstructure:"enabled"`
	Topic   string                         `mapstructure:"topic"`
	PubSub  types.PubSubType               `mapstructure:"pubsub" validate:"omitempty,oneof=memory kafka"`
	Tenants map[string]TenantWebhookConfig `mapstructure:"tenants"`
	Svix    SvixConfig                     `mapstructure:"svix"`

	// retry policy of the delivery handler
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// TenantWebhookConfig represents webhook configuration for a specific tenant
type TenantWebhookConfig struct {
	Endpoint       string            `mapstructure:"endpoint"`
	Headers        map[string]string `mapstructure:"headers"`
	Enabled        bool              `mapstructure:"enabled"`
	ExcludedEvents []string          `mapstructure:"excluded_events"`
}

// SvixConfig routes deliveries through Svix instead of calling tenant endpoints directly
type SvixConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	AuthToken string `mapstructure:"auth_token"`
}
