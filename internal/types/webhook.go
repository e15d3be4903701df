package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent is a lifecycle notification queued for delivery to tenant endpoints
type WebhookEvent struct {
	ID            string          `json:"id"`
	EventName     string          `json:"event_name"`
	TenantID      string          `json:"tenant_id"`
	EnvironmentID string          `json:"environment_id"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// subscription lifecycle event names, emitted after each committed transition
const (
	WebhookEventSubscriptionActivated = "subscription.activated"
	WebhookEventSubscriptionRenewed   = "subscription.renewed"
	WebhookEventSubscriptionFailing   = "subscription.failing"
	WebhookEventSubscriptionCancelled = "subscription.cancelled"
	WebhookEventSubscriptionExpired   = "subscription.expired"
	WebhookEventSubscriptionCompleted = "subscription.completed"
)

var LifecycleWebhookEvents = []string{
	WebhookEventSubscriptionActivated,
	WebhookEventSubscriptionRenewed,
	WebhookEventSubscriptionFailing,
	WebhookEventSubscriptionCancelled,
	WebhookEventSubscriptionExpired,
	WebhookEventSubscriptionCompleted,
}
