package router

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pubsub/memory"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	log := logger.NewNopLogger()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "rate limited", err: httpclient.NewError(http.StatusTooManyRequests, nil), expected: true},
		{name: "bad gateway", err: httpclient.NewError(http.StatusBadGateway, nil), expected: true},
		{name: "client error", err: httpclient.NewError(http.StatusBadRequest, nil), expected: false},
		{name: "gone", err: httpclient.NewError(http.StatusGone, nil), expected: false},
		{name: "network timeout", err: timeoutError{}, expected: true},
		{name: "validation", err: ierr.NewError("bad payload").Mark(ierr.ErrValidation), expected: false},
		{name: "not found", err: ierr.NewError("subscription gone").Mark(ierr.ErrNotFound), expected: false},
		{name: "no builder", err: ierr.NewError("unknown event").Mark(ierr.ErrInvalidOperation), expected: false},
		{name: "unknown", err: errors.New("boom"), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldRetry(log, tt.err))
		})
	}
}

func newTestRouter(t *testing.T) *Router {
	cfg := config.GetDefaultConfig()
	cfg.Webhook.MaxRetries = 3
	cfg.Webhook.InitialInterval = time.Millisecond
	cfg.Webhook.MaxInterval = 5 * time.Millisecond
	cfg.Webhook.Multiplier = 2
	cfg.Webhook.MaxElapsedTime = time.Second

	log := logger.NewNopLogger()
	r, err := NewRouter(cfg, log, sentry.NewSentryService(cfg, log))
	require.NoError(t, err)
	return r
}

func runRouter(t *testing.T, r *Router) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = r.Close()
	})

	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func TestRouterRetriesTransientErrors(t *testing.T) {
	r := newTestRouter(t)
	ps := memory.NewPubSub(logger.NewNopLogger())

	var calls atomic.Int32
	done := make(chan struct{})
	r.AddNoPublishHandler("test", "events", ps, func(msg *message.Message) error {
		if calls.Add(1) < 3 {
			return httpclient.NewError(http.StatusServiceUnavailable, nil)
		}
		close(done)
		return nil
	})
	runRouter(t, r)

	require.NoError(t, ps.Publish(context.Background(), "events", message.NewMessage("msg-1", []byte(`{}`))))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not redelivered")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestRouterDropsPermanentErrors(t *testing.T) {
	r := newTestRouter(t)
	ps := memory.NewPubSub(logger.NewNopLogger())

	var calls atomic.Int32
	r.AddNoPublishHandler("test", "events", ps, func(msg *message.Message) error {
		calls.Add(1)
		return ierr.NewError("bad payload").Mark(ierr.ErrValidation)
	})
	runRouter(t, r)

	require.NoError(t, ps.Publish(context.Background(), "events", message.NewMessage("msg-1", []byte(`{}`))))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	// no redelivery follows the acknowledgement
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRouterDeadLettersExhaustedMessages(t *testing.T) {
	r := newTestRouter(t)
	ps := memory.NewPubSub(logger.NewNopLogger())

	dead, err := r.DeadLetters(context.Background())
	require.NoError(t, err)

	r.AddNoPublishHandler("test", "events", ps, func(msg *message.Message) error {
		return httpclient.NewError(http.StatusBadGateway, nil)
	})
	runRouter(t, r)

	require.NoError(t, ps.Publish(context.Background(), "events", message.NewMessage("msg-dead", []byte(`{}`))))

	select {
	case msg := <-dead:
		assert.Equal(t, "msg-dead", msg.UUID)
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("message did not reach the dead letter topic")
	}
}
