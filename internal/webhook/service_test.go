package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/logger"
	pubsubRouter "github.com/flexprice/recurring/internal/pubsub/router"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/flexprice/recurring/internal/svix"
	"github.com/flexprice/recurring/internal/types"
	webhookDto "github.com/flexprice/recurring/internal/webhook/dto"
	"github.com/flexprice/recurring/internal/webhook/handler"
	"github.com/flexprice/recurring/internal/webhook/payload"
	"github.com/flexprice/recurring/internal/webhook/publisher"
	"github.com/stretchr/testify/require"
)

type stubSubscriptions struct{}

func (stubSubscriptions) GetSubscription(_ context.Context, id string) (*dto.SubscriptionResponse, error) {
	return &dto.SubscriptionResponse{Subscription: &subscription.Subscription{ID: id}}, nil
}

func TestPublishedEventIsDelivered(t *testing.T) {
	received := make(chan webhookDto.SubscriptionWebhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookDto.SubscriptionWebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.Webhook.Enabled = true
	cfg.Webhook.Topic = "lifecycle_webhooks"
	cfg.Webhook.PubSub = types.MemoryPubSub
	cfg.Webhook.Tenants = map[string]config.TenantWebhookConfig{
		types.DefaultTenantID: {Endpoint: srv.URL, Enabled: true},
	}
	log := logger.NewNopLogger()

	ps, err := providePubSub(cfg, log)
	require.NoError(t, err)
	pub, err := publisher.NewPublisher(ps, cfg, log)
	require.NoError(t, err)
	svixClient, err := svix.NewClient(cfg)
	require.NoError(t, err)
	sentrySvc := sentry.NewSentryService(cfg, log)
	h, err := handler.NewHandler(ps, cfg,
		payload.NewPayloadBuilderFactory(payload.NewServices(stubSubscriptions{})),
		httpclient.NewDefaultClient(httpclient.DefaultClientConfig(), log),
		log, sentrySvc, svixClient)
	require.NoError(t, err)
	router, err := pubsubRouter.NewRouter(cfg, log, sentrySvc)
	require.NoError(t, err)

	svc := NewWebhookService(cfg, pub, h, router, log)
	require.NoError(t, svc.Start(context.Background()))
	defer func() { require.NoError(t, svc.Stop()) }()

	inner, err := json.Marshal(webhookDto.InternalSubscriptionEvent{
		EventType:      types.WebhookEventSubscriptionExpired,
		SubscriptionID: "sub_42",
		TenantID:       types.DefaultTenantID,
		From:           types.SubscriptionStatusCancelled,
		To:             types.SubscriptionStatusExpired,
	})
	require.NoError(t, err)
	require.NoError(t, pub.PublishWebhook(context.Background(), &types.WebhookEvent{
		ID:        "evt_42",
		EventName: types.WebhookEventSubscriptionExpired,
		TenantID:  types.DefaultTenantID,
		Timestamp: time.Now().UTC(),
		Payload:   inner,
	}))

	select {
	case body := <-received:
		require.Equal(t, types.WebhookEventSubscriptionExpired, body.EventType)
		require.Equal(t, types.SubscriptionStatusExpired, body.To)
		require.Equal(t, "sub_42", body.Subscription.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestUnsupportedPubSub(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Webhook.PubSub = "redis"
	_, err := providePubSub(cfg, logger.NewNopLogger())
	require.Error(t, err)
}
