package payload

import (
	"context"
	"encoding/json"

	ierr "github.com/flexprice/recurring/internal/errors"
	webhookDto "github.com/flexprice/recurring/internal/webhook/dto"
)

// PayloadBuilder turns the internal event published by the engine into the
// body delivered to the tenant
type PayloadBuilder interface {
	BuildPayload(ctx context.Context, eventType string, data json.RawMessage) (json.RawMessage, error)
}

// subscriptionPayloadBuilder reloads the subscription so the delivered body
// reflects its state at delivery time, not at publish time
type subscriptionPayloadBuilder struct {
	reader SubscriptionReader
}

func NewSubscriptionPayloadBuilder(services *Services) PayloadBuilder {
	return &subscriptionPayloadBuilder{reader: services.SubscriptionService}
}

func (b *subscriptionPayloadBuilder) BuildPayload(ctx context.Context, eventType string, data json.RawMessage) (json.RawMessage, error) {
	var event webhookDto.InternalSubscriptionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unable to unmarshal subscription event payload").
			Mark(ierr.ErrInvalidOperation)
	}
	if event.EventType == "" {
		event.EventType = eventType
	}

	sub, err := b.reader.GetSubscription(ctx, event.SubscriptionID)
	if err != nil {
		return nil, err
	}

	return json.Marshal(webhookDto.NewSubscriptionWebhookPayload(&event, sub))
}
