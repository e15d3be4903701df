package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub"
	pubsubRouter "github.com/flexprice/recurring/internal/pubsub/router"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/flexprice/recurring/internal/svix"
	"github.com/flexprice/recurring/internal/types"
	"github.com/flexprice/recurring/internal/webhook/payload"
	"github.com/samber/lo"
)

// Handler delivers lifecycle events from the internal topic to tenants
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub     pubsub.PubSub
	config     *config.Webhook
	factory    payload.PayloadBuilderFactory
	client     httpclient.Client
	logger     *logger.Logger
	sentry     *sentry.Service
	svixClient *svix.Client
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	factory payload.PayloadBuilderFactory,
	client httpclient.Client,
	logger *logger.Logger,
	sentry *sentry.Service,
	svixClient *svix.Client,
) (Handler, error) {
	return &handler{
		pubSub:     pubSub,
		config:     &cfg.Webhook,
		factory:    factory,
		client:     client,
		logger:     logger,
		sentry:     sentry,
		svixClient: svixClient,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"lifecycle_webhook_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	var event types.WebhookEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal webhook event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil
	}

	ctx := types.SetTenantID(msg.Context(), event.TenantID)
	ctx = types.SetEnvironmentID(ctx, event.EnvironmentID)
	ctx = types.SetUserID(ctx, event.UserID)

	span, ctx := h.sentry.StartDeliverySpan(ctx, event.EventName, event.Timestamp)

	var err error
	if h.svixClient.Enabled() {
		err = h.processMessageSvix(ctx, &event, msg.UUID)
	} else {
		err = h.processMessageNative(ctx, &event, msg.UUID)
	}
	sentry.Finish(span, err)
	return err
}

func (h *handler) buildPayload(ctx context.Context, event *types.WebhookEvent) (json.RawMessage, error) {
	builder, err := h.factory.GetBuilder(event.EventName)
	if err != nil {
		return nil, err
	}
	return builder.BuildPayload(ctx, event.EventName, event.Payload)
}

func (h *handler) processMessageSvix(ctx context.Context, event *types.WebhookEvent, messageUUID string) error {
	appID, err := h.svixClient.GetOrCreateApplication(ctx, event.TenantID, event.EnvironmentID)
	if err != nil {
		return err
	}

	body, err := h.buildPayload(ctx, event)
	if err != nil {
		return err
	}

	if err := h.svixClient.SendMessage(ctx, appID, event.EventName, body); err != nil {
		h.logger.Errorw("failed to send webhook via Svix",
			"error", err,
			"message_uuid", messageUUID,
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return err
	}

	h.logger.Infow("webhook sent successfully via Svix",
		"message_uuid", messageUUID,
		"tenant_id", event.TenantID,
		"event", event.EventName,
	)
	return nil
}

func (h *handler) processMessageNative(ctx context.Context, event *types.WebhookEvent, messageUUID string) error {
	tenantCfg, ok := h.config.Tenants[event.TenantID]
	if !ok {
		h.logger.Warnw("tenant config not found",
			"tenant_id", event.TenantID,
			"message_uuid", messageUUID,
		)
		return nil
	}

	if !tenantCfg.Enabled {
		h.logger.Debugw("webhooks disabled for tenant",
			"tenant_id", event.TenantID,
			"message_uuid", messageUUID,
		)
		return nil
	}

	if lo.Contains(tenantCfg.ExcludedEvents, event.EventName) {
		h.logger.Debugw("event excluded for tenant",
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return nil
	}

	body, err := h.buildPayload(ctx, event)
	if err != nil {
		return err
	}

	headers := lo.Assign(tenantCfg.Headers, map[string]string{
		"X-Webhook-Event": event.EventName,
		"X-Webhook-ID":    event.ID,
	})
	resp, err := h.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     tenantCfg.Endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		h.logger.Errorw("failed to send webhook",
			"error", err,
			"message_uuid", messageUUID,
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return err
	}

	h.logger.Infow("webhook sent successfully",
		"message_uuid", messageUUID,
		"tenant_id", event.TenantID,
		"event", event.EventName,
		"status_code", resp.StatusCode,
	)
	return nil
}
