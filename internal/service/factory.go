package service

import (
	"github.com/flexprice/recurring/internal/cache"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/customer"
	"github.com/flexprice/recurring/internal/domain/eventlog"
	"github.com/flexprice/recurring/internal/domain/order"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/locker"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	webhookPublisher "github.com/flexprice/recurring/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	SubRepo      subscription.Repository
	NoteRepo     subscription.NoteRepository
	Ledger       order.Ledger
	CustomerRepo customer.Repository
	EventLogRepo eventlog.Repository

	// Gateways resolves the adapter of a subscription's payment provider
	Gateways *gateway.Registry
	Locker   locker.Locker
	Cache    cache.Cache

	// Publishers
	WebhookPublisher webhookPublisher.WebhookPublisher

	// http client
	Client httpclient.Client
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	subRepo subscription.Repository,
	noteRepo subscription.NoteRepository,
	ledger order.Ledger,
	customerRepo customer.Repository,
	eventLogRepo eventlog.Repository,
	gateways *gateway.Registry,
	locker locker.Locker,
	cache cache.Cache,
	webhookPublisher webhookPublisher.WebhookPublisher,
	client httpclient.Client,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		SubRepo:          subRepo,
		NoteRepo:         noteRepo,
		Ledger:           ledger,
		CustomerRepo:     customerRepo,
		EventLogRepo:     eventLogRepo,
		Gateways:         gateways,
		Locker:           locker,
		Cache:            cache,
		WebhookPublisher: webhookPublisher,
		Client:           client,
	}
}
