package webhookDto

import (
	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/types"
)

// InternalSubscriptionEvent is published on the internal topic when a subscription
// transitions. It carries ids only, the outbound payload is built at delivery time.
type InternalSubscriptionEvent struct {
	EventType      string                   `json:"event_type"`
	SubscriptionID string                   `json:"subscription_id"`
	TenantID       string                   `json:"tenant_id"`
	From           types.SubscriptionStatus `json:"from"`
	To             types.SubscriptionStatus `json:"to"`
	Note           string                   `json:"note,omitempty"`
}

// SubscriptionWebhookPayload is the body delivered to tenant endpoints
type SubscriptionWebhookPayload struct {
	EventType    string                    `json:"event_type"`
	From         types.SubscriptionStatus  `json:"previous_status"`
	To           types.SubscriptionStatus  `json:"status"`
	Note         string                    `json:"note,omitempty"`
	Subscription *dto.SubscriptionResponse `json:"subscription"`
}

func NewSubscriptionWebhookPayload(event *InternalSubscriptionEvent, subscription *dto.SubscriptionResponse) *SubscriptionWebhookPayload {
	return &SubscriptionWebhookPayload{
		EventType:    event.EventType,
		From:         event.From,
		To:           event.To,
		Note:         event.Note,
		Subscription: subscription,
	}
}
