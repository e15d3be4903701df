package payload

import (
	"context"

	"github.com/flexprice/recurring/internal/api/dto"
)

// SubscriptionReader is the slice of the subscription service payload builders need
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
}

// Services container for all services needed by payload builders
type Services struct {
	SubscriptionService SubscriptionReader
}

// NewServices creates a new Services container
func NewServices(subscriptionService SubscriptionReader) *Services {
	return &Services{
		SubscriptionService: subscriptionService,
	}
}
