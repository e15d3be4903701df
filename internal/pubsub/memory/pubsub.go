package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
)

// PubSub delivers lifecycle events inside the process through watermill's gochannel.
// Only usable when the api and the webhook consumer share a process, as in local mode.
type PubSub struct {
	pubsub *gochannel.GoChannel
	logger *logger.Logger
}

var _ pubsub.PubSub = (*PubSub)(nil)

func NewPubSub(logger *logger.Logger) pubsub.PubSub {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			// events published before the handler subscribed are replayed to it
			Persistent:          true,
			OutputChannelBuffer: 100,
		},
		watermill.NewStdLogger(false, false),
	)

	return &PubSub{
		pubsub: goChannel,
		logger: logger,
	}
}

func (p *PubSub) Publish(_ context.Context, topic string, msg *message.Message) error {
	return p.pubsub.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.pubsub.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	return p.pubsub.Close()
}
