package webhook

import (
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
	"github.com/flexprice/recurring/internal/pubsub/kafka"
	"github.com/flexprice/recurring/internal/pubsub/memory"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/types"
	"github.com/flexprice/recurring/internal/webhook/handler"
	"github.com/flexprice/recurring/internal/webhook/payload"
	"github.com/flexprice/recurring/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module provides all webhook-related dependencies
var Module = fx.Options(
	fx.Provide(
		providePubSub,
	),

	fx.Provide(
		publisher.NewPublisher,
		handler.NewHandler,
		providePayloadBuilderFactory,
		NewWebhookService,
	),
)

func providePayloadBuilderFactory(subscriptionService service.SubscriptionService) payload.PayloadBuilderFactory {
	return payload.NewPayloadBuilderFactory(payload.NewServices(subscriptionService))
}

func providePubSub(
	cfg *config.Configuration,
	logger *logger.Logger,
) (pubsub.PubSub, error) {
	switch cfg.Webhook.PubSub {
	case types.MemoryPubSub, "":
		return memory.NewPubSub(logger), nil
	case types.KafkaPubSub:
		return kafka.NewPubSub(cfg, logger)
	}
	return nil, ierr.NewErrorf("unsupported pubsub type: %s", cfg.Webhook.PubSub).
		WithHint("webhook.pubsub must be memory or kafka").
		Mark(ierr.ErrValidation)
}
