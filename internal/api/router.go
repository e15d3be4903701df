package api

import (
	"github.com/flexprice/recurring/internal/api/cron"
	v1 "github.com/flexprice/recurring/internal/api/v1"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pyroscope"
	"github.com/flexprice/recurring/internal/rest/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	Events       *v1.EventsHandler
	Webhook      *v1.WebhookHandler
	CronSweep    *cron.SubscriptionHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, pyroscopeSvc *pyroscope.Service) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.LoggingMiddleware(logger),
		middleware.SentryMiddleware(cfg),
		middleware.SentryErrorReporter(cfg),
		middleware.PyroscopeMiddleware(pyroscopeSvc),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// v1 routes
	v1Group := router.Group("/v1")

	// Gateway deliveries carry the tenant in the path and are verified by the gateway adapter
	webhooks := v1Group.Group("/webhooks")
	webhooks.Use(middleware.GatewayWebhookMiddleware)
	{
		webhooks.POST("/:gateway/:tenant_id/:environment_id", handlers.Webhook.HandleGatewayWebhook)
	}

	private := v1Group.Group("")
	private.Use(middleware.AuthenticateMiddleware(cfg, logger))
	registerV1Routes(private, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.PATCH("/:id", handlers.Subscription.UpdateSubscription)
		subscriptions.POST("/:id/notes", handlers.Subscription.AddNote)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.GET("/:id/retry", handlers.Subscription.CanRetry)
		subscriptions.POST("/:id/retry", handlers.Subscription.RetryPayment)
	}

	events := router.Group("/events")
	{
		events.GET("", handlers.Events.ListEvents)
	}

	cronGroup := router.Group("/cron")
	{
		subscriptionGroup := cronGroup.Group("/subscriptions")
		{
			subscriptionGroup.POST("/expire", handlers.CronSweep.ExpireSubscriptions)
			subscriptionGroup.POST("/retry", handlers.CronSweep.RetryFailingSubscriptions)
			subscriptionGroup.POST("/repair-profiles", handlers.CronSweep.RepairDuplicateProfiles)
		}
	}
}
