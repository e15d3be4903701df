package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Kafka      KafkaConfig
	Auth       AuthConfig
	Sentry     SentryConfig
	Pyroscope  PyroscopeConfig
	Cache      CacheConfig
	Webhook    Webhook
	Gateway    GatewayConfig  `validate:"required"`
	Locker     LockerConfig   `validate:"required"`
	Conflict   ConflictConfig `validate:"required"`
	Sweep      SweepConfig    `validate:"required"`
	Temporal   TemporalConfig
	S3         S3Config
	DynamoDB   DynamoDBConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `validate:"required"`
	Port                   int    `validate:"required"`
	User                   string `validate:"required"`
	Password               string
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

type AuthConfig struct {
	// Secret signs operator tokens. Token authentication is off when empty.
	Secret string       `mapstructure:"secret"`
	APIKey APIKeyConfig `mapstructure:"api_key"`
}

type APIKeyConfig struct {
	Header string `mapstructure:"header" validate:"required"`
	// Keys maps the sha256 hex of an API key to its owner
	Keys map[string]APIKeyDetails `mapstructure:"keys"`
}

type APIKeyDetails struct {
	TenantID string `mapstructure:"tenant_id" json:"tenant_id" validate:"required"`
	UserID   string `mapstructure:"user_id" json:"user_id" validate:"required"`
	Name     string `mapstructure:"name" json:"name"`
	IsActive bool   `mapstructure:"is_active" json:"is_active"`
}

type PyroscopeConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	ServerAddress   string   `mapstructure:"server_address"`
	ApplicationName string   `mapstructure:"application_name"`
	BasicAuthUser   string   `mapstructure:"basic_auth_user"`
	BasicAuthPass   string   `mapstructure:"basic_auth_pass"`
	SampleRate      uint32   `mapstructure:"sample_rate"`
	DisableGCRuns   bool     `mapstructure:"disable_gc_runs"`
	ProfileTypes    []string `mapstructure:"profile_types"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TTL of cached customer directory lookups
	TTL time.Duration `mapstructure:"ttl"`
}

// GatewayConfig holds the settings shared by all gateway adapters plus per provider credentials
type GatewayConfig struct {
	// Timeout bounds every outbound cancel or charge call
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
	// InitialPaymentWindow is the distance from the parent order under which a sale is
	// treated as the initial payment
	InitialPaymentWindow time.Duration `mapstructure:"initial_payment_window" validate:"required"`
	Stripe               StripeConfig  `mapstructure:"stripe"`
	PayPal               PayPalConfig  `mapstructure:"paypal"`
}

type StripeConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type PayPalConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// WebhookID enables signature verification of inbound events when set
	WebhookID string `mapstructure:"webhook_id"`
}

type LockerConfig struct {
	Type types.LockerType `mapstructure:"type" validate:"required,oneof=memory postgres"`
}

// ConflictConfig bounds the optimistic concurrency retry loop around subscription writes
type ConflictConfig struct {
	MaxAttempts     uint64        `mapstructure:"max_attempts" validate:"required,min=1"`
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"required"`
	MaxInterval     time.Duration `mapstructure:"max_interval" validate:"required"`
}

type SweepConfig struct {
	BatchSize int `mapstructure:"batch_size" validate:"required,min=1"`
	// Concurrency is the number of subscriptions processed in parallel by a sweep
	Concurrency int `mapstructure:"concurrency" validate:"required,min=1"`
	// RetryRatePerSecond caps outbound gateway charges issued by the retry sweep
	RetryRatePerSecond float64 `mapstructure:"retry_rate_per_second" validate:"required,gt=0"`
	// GracePeriod is how long a failing subscription may stay past its expiration before it is expired
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	APIKey    string `mapstructure:"api_key"`
	TLS       bool   `mapstructure:"tls"`
	// SweepCron is the cron expression of the scheduled sweep workflow
	SweepCron string `mapstructure:"sweep_cron"`
}

// S3Config configures the archive of raw gateway webhook payloads
type S3Config struct {
	Enabled               bool   `mapstructure:"enabled"`
	Region                string `mapstructure:"region"`
	Bucket                string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	KeyPrefix             string `mapstructure:"key_prefix"`
	PresignExpiryDuration string `mapstructure:"presign_expiry_duration"`
}

// DynamoDBConfig configures the optional mirror of the gateway event log
type DynamoDBConfig struct {
	InUse          bool   `mapstructure:"in_use"`
	Region         string `mapstructure:"region"`
	EventTableName string `mapstructure:"event_table_name" validate:"required_if=InUse true"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/recurring")

	v.SetEnvPrefix("RECURRING")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		fmt.Printf("No config file found, using defaults and environment\n")
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override values missing from the file
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "recurring")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "recurring")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("kafka.consumer_group", "recurring")
	v.SetDefault("kafka.client_id", "recurring")
	v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	v.SetDefault("auth.api_key.header", "x-api-key")
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("pyroscope.enabled", false)
	v.SetDefault("pyroscope.application_name", "recurring")
	v.SetDefault("pyroscope.sample_rate", 100)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.topic", "lifecycle_webhooks")
	v.SetDefault("webhook.pubsub", types.MemoryPubSub)
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.initial_interval", time.Second)
	v.SetDefault("webhook.max_interval", 10*time.Second)
	v.SetDefault("webhook.multiplier", 2.0)
	v.SetDefault("webhook.max_elapsed_time", 2*time.Minute)
	v.SetDefault("gateway.timeout", 15*time.Second)
	v.SetDefault("gateway.initial_payment_window", 24*time.Hour)
	v.SetDefault("gateway.paypal.base_url", "https://api-m.paypal.com")
	v.SetDefault("locker.type", types.LockerTypeMemory)
	v.SetDefault("conflict.max_attempts", 5)
	v.SetDefault("conflict.initial_interval", 20*time.Millisecond)
	v.SetDefault("conflict.max_interval", 500*time.Millisecond)
	v.SetDefault("sweep.batch_size", 100)
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("sweep.retry_rate_per_second", 2.0)
	v.SetDefault("sweep.grace_period", 7*24*time.Hour)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "recurring-sweeps")
	v.SetDefault("temporal.sweep_cron", "*/15 * * * *")
	v.SetDefault("s3.enabled", false)
	v.SetDefault("dynamodb.in_use", false)
	v.SetDefault("dynamodb.region", "us-east-1")
	v.SetDefault("dynamodb.event_table_name", "recurring_gateway_events")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.key_prefix", "gateway-events")
	v.SetDefault("s3.presign_expiry_duration", "30m")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "recurring",
			DBName:  "recurring",
			SSLMode: "disable",
		},
		Auth: AuthConfig{
			APIKey: APIKeyConfig{Header: "x-api-key"},
		},
		Cache: CacheConfig{Enabled: true, TTL: 30 * time.Minute},
		Webhook: Webhook{
			Topic:           "lifecycle_webhooks",
			PubSub:          types.MemoryPubSub,
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2,
			MaxElapsedTime:  2 * time.Minute,
		},
		Gateway: GatewayConfig{
			Timeout:              15 * time.Second,
			InitialPaymentWindow: 24 * time.Hour,
		},
		Locker: LockerConfig{Type: types.LockerTypeMemory},
		Conflict: ConflictConfig{
			MaxAttempts:     5,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
		},
		Sweep: SweepConfig{
			BatchSize:          100,
			Concurrency:        4,
			RetryRatePerSecond: 100,
			GracePeriod:        7 * 24 * time.Hour,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
