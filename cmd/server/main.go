package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	_ "github.com/flexprice/recurring/docs/swagger"
	"github.com/flexprice/recurring/internal/api"
	"github.com/flexprice/recurring/internal/api/cron"
	v1 "github.com/flexprice/recurring/internal/api/v1"
	"github.com/flexprice/recurring/internal/cache"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/eventlog"
	"github.com/flexprice/recurring/internal/dynamodb"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/integration"
	"github.com/flexprice/recurring/internal/locker"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	pubsubRouter "github.com/flexprice/recurring/internal/pubsub/router"
	"github.com/flexprice/recurring/internal/pyroscope"
	"github.com/flexprice/recurring/internal/repository"
	"github.com/flexprice/recurring/internal/s3"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/svix"
	"github.com/flexprice/recurring/internal/temporal"
	"github.com/flexprice/recurring/internal/temporal/activities"
	"github.com/flexprice/recurring/internal/types"
	"github.com/flexprice/recurring/internal/validator"
	"github.com/flexprice/recurring/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// @title Recurring API
// @version 1.0
// @description Subscription lifecycle and payment gateway reconciliation
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description Enter your API key in the format *x-api-key &lt;api-key&gt;**

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	// Initialize Fx application
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			provideCache,

			// HTTP Client
			provideHTTPClient,

			// Gateways
			integration.NewRegistry,
			locker.NewLocker,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewSubscriptionNoteRepository,
			repository.NewLedgerRepository,
			repository.NewCustomerRepository,
			provideEventLogRepository,

			// Payload archive and event mirror
			s3.NewService,
			dynamodb.NewClient,

			// PubSub
			pubsubRouter.NewRouter,
			svix.NewClient,

			// Temporal
			provideTemporalClient,
			provideTemporalService,
		),
		postgres.Module(),
		pyroscope.Module(),
	)

	// Webhook module (must be initialised before services)
	opts = append(opts, webhook.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewCustomerService,
			service.NewLifecycleService,
			service.NewRenewalRecorder,
			service.NewPaymentClassifier,
			service.NewRetryService,
			service.NewWebhookDispatcher,
			service.NewEventLogService,
			service.NewSubscriptionService,
			service.NewSweepService,

			activities.NewSweepActivities,
		),
	)

	// API and Temporal
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideCache(cfg *config.Configuration) cache.Cache {
	return cache.NewInMemoryCache(cfg)
}

func provideHTTPClient(log *logger.Logger) httpclient.Client {
	return httpclient.NewDefaultClient(httpclient.DefaultClientConfig(), log)
}

func provideEventLogRepository(db *postgres.DB, client *dynamodb.Client, cfg *config.Configuration, logger *logger.Logger) eventlog.Repository {
	repo := repository.NewEventLogRepository(db, logger)
	if client == nil {
		return repo
	}
	return dynamodb.NewEventLogMirror(repo, client, cfg, logger)
}

func provideHandlers(
	db postgres.IClient,
	logger *logger.Logger,
	sentryService *sentry.Service,
	archive s3.Service,
	subscriptionService service.SubscriptionService,
	lifecycleService service.LifecycleService,
	retryService service.RetryService,
	dispatcher service.WebhookDispatcher,
	eventLogService service.EventLogService,
	sweepService service.SweepService,
	temporalService *temporal.Service,
) api.Handlers {
	// a nil *temporal.Service must stay a nil interface
	var workflows cron.ProfileRepairStarter
	if temporalService != nil {
		workflows = temporalService
	}

	return api.Handlers{
		Health:       v1.NewHealthHandler(db, logger),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, lifecycleService, retryService, logger),
		Events:       v1.NewEventsHandler(eventLogService),
		Webhook:      v1.NewWebhookHandler(dispatcher, archive, sentryService, logger),
		CronSweep:    cron.NewSubscriptionHandler(subscriptionService, sweepService, workflows, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, pyroscopeService *pyroscope.Service) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, pyroscopeService)
}

// provideTemporalClient returns nil when temporal is disabled, the sweeps are then driven by the cron endpoints
func provideTemporalClient(cfg *config.Configuration, log *logger.Logger) (*temporal.TemporalClient, error) {
	if !cfg.Temporal.Enabled {
		return nil, nil
	}
	return temporal.NewTemporalClient(&cfg.Temporal, log)
}

func provideTemporalService(temporalClient *temporal.TemporalClient, cfg *config.Configuration, log *logger.Logger) *temporal.Service {
	if temporalClient == nil {
		return nil
	}
	return temporal.NewService(temporalClient, cfg, log)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db *postgres.DB,
	gateways *gateway.Registry,
	temporalClient *temporal.TemporalClient,
	temporalService *temporal.Service,
	sweepActivities *activities.SweepActivities,
	webhookService *webhook.WebhookService,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	log.Infow("starting recurring", "mode", mode, "gateways", gateways.Gateways())

	switch mode {
	case types.ModeLocal:
		runMigrations(lc, db, log)
		startAPIServer(lc, r, cfg, log)
		startWebhookService(lc, webhookService, log)
		startTemporalWorker(lc, temporalClient, temporalService, sweepActivities, cfg, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
		startWebhookService(lc, webhookService, log)
	case types.ModeConsumer:
		startWebhookService(lc, webhookService, log)
	case types.ModeTemporalWorker:
		startTemporalWorker(lc, temporalClient, temporalService, sweepActivities, cfg, log)
	case types.ModeAWSLambdaAPI:
		startWebhookService(lc, webhookService, log)
		startAWSLambdaAPI(lc, r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func runMigrations(lc fx.Lifecycle, db *postgres.DB, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			applied, err := db.Migrate(ctx)
			if err != nil {
				return err
			}
			log.Infow("database schema up to date", "applied", applied)
			return nil
		},
	})
}

func startTemporalWorker(
	lc fx.Lifecycle,
	temporalClient *temporal.TemporalClient,
	temporalService *temporal.Service,
	sweepActivities *activities.SweepActivities,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	if temporalClient == nil {
		log.Warn("temporal is disabled, sweeps only run through the cron endpoints")
		return
	}

	worker := temporal.NewWorker(temporalClient, cfg, sweepActivities, log)
	worker.RegisterWithLifecycle(lc)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := temporalService.ScheduleSweeps(ctx)
			return err
		},
		OnStop: func(ctx context.Context) error {
			temporalService.Close()
			return nil
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startWebhookService(lc fx.Lifecycle, webhookService *webhook.WebhookService, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting webhook delivery")
			return webhookService.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping webhook delivery")
			return webhookService.Stop()
		},
	})
}

// startAWSLambdaAPI blocks in lambda.Start once the rest of the app has started
func startAWSLambdaAPI(lc fx.Lifecycle, r *gin.Engine) {
	ginLambda := ginadapter.New(r)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go lambda.Start(ginLambda.ProxyWithContext)
			return nil
		},
	})
}
