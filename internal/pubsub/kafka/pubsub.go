package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
)

// PubSub carries lifecycle events over kafka so the api and consumer can run apart
type PubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *logger.Logger
}

var _ pubsub.PubSub = (*PubSub)(nil)

// NewPubSub creates a kafka publisher and a consumer group subscriber over the configured brokers
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, ierr.NewError("kafka brokers are not configured").
			WithHint("Set kafka.brokers to use the kafka pubsub").
			Mark(ierr.ErrValidation)
	}

	saramaConfig := GetSaramaConfig(cfg)
	wmLogger := watermill.NewStdLogger(false, false)

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		wmLogger,
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect the kafka publisher").
			Mark(ierr.ErrSystem)
	}

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Kafka.Brokers,
			ConsumerGroup:         cfg.Kafka.ConsumerGroup,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		wmLogger,
	)
	if err != nil {
		_ = publisher.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to connect the kafka subscriber").
			Mark(ierr.ErrSystem)
	}

	logger.Infow("connected kafka pubsub",
		"brokers", cfg.Kafka.Brokers,
		"consumer_group", cfg.Kafka.ConsumerGroup)

	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

func (p *PubSub) Publish(_ context.Context, topic string, msg *message.Message) error {
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	pubErr := p.publisher.Close()
	subErr := p.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
