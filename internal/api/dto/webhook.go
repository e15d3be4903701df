package dto

import (
	"github.com/flexprice/recurring/internal/domain/eventlog"
	"github.com/flexprice/recurring/internal/types"
)

// WebhookResponse is returned to the gateway for every delivery
type WebhookResponse struct {
	Outcome        types.DispatchOutcome `json:"outcome"`
	Reason         string                `json:"reason,omitempty"`
	SubscriptionID string                `json:"subscription_id,omitempty"`
	EventID        string                `json:"event_id,omitempty"`
}

type GatewayEventResponse struct {
	*eventlog.GatewayEvent
}

// ListGatewayEventsResponse represents the response for listing the gateway event log
type ListGatewayEventsResponse = types.ListResponse[*GatewayEventResponse]
