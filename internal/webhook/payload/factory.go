package payload

import (
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
)

// PayloadBuilderFactory interface for getting event-specific payload builders
type PayloadBuilderFactory interface {
	GetBuilder(eventType string) (PayloadBuilder, error)
}

type payloadBuilderFactory struct {
	builders map[string]func() PayloadBuilder
	services *Services
}

// NewPayloadBuilderFactory creates a new factory with registered builders
func NewPayloadBuilderFactory(services *Services) PayloadBuilderFactory {
	f := &payloadBuilderFactory{
		builders: make(map[string]func() PayloadBuilder),
		services: services,
	}

	// every lifecycle event carries the same enriched subscription body
	for _, eventType := range types.LifecycleWebhookEvents {
		f.builders[eventType] = func() PayloadBuilder {
			return NewSubscriptionPayloadBuilder(f.services)
		}
	}

	return f
}

// GetBuilder returns a payload builder for the given event type
func (f *payloadBuilderFactory) GetBuilder(eventType string) (PayloadBuilder, error) {
	builderFn, ok := f.builders[eventType]
	if !ok {
		return nil, ierr.NewErrorf("no builder registered for event type: %s", eventType).
			WithHintf("Unsupported webhook event %s", eventType).
			Mark(ierr.ErrInvalidOperation)
	}

	return builderFn(), nil
}
