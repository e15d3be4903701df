package webhook

import (
	"context"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	pubsubRouter "github.com/flexprice/recurring/internal/pubsub/router"
	"github.com/flexprice/recurring/internal/webhook/handler"
	"github.com/flexprice/recurring/internal/webhook/publisher"
)

// WebhookService runs delivery of lifecycle events to tenants
type WebhookService struct {
	config    *config.Configuration
	publisher publisher.WebhookPublisher
	handler   handler.Handler
	router    *pubsubRouter.Router
	logger    *logger.Logger
	cancel    context.CancelFunc
	done      chan error
}

func NewWebhookService(
	cfg *config.Configuration,
	publisher publisher.WebhookPublisher,
	h handler.Handler,
	router *pubsubRouter.Router,
	l *logger.Logger,
) *WebhookService {
	return &WebhookService{
		config:    cfg,
		publisher: publisher,
		handler:   h,
		router:    router,
		logger:    l,
	}
}

// Start registers the delivery handler and runs the router in the background.
// It returns once the handler is subscribed.
func (s *WebhookService) Start(ctx context.Context) error {
	if !s.config.Webhook.Enabled {
		s.logger.Info("webhook service disabled")
		return nil
	}

	s.logger.Debug("starting webhook service")
	s.handler.RegisterHandler(s.router)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- s.router.Run(runCtx)
	}()

	select {
	case <-s.router.Running():
	case err := <-s.done:
		cancel()
		return ierr.WithError(err).
			WithHint("Failed to start webhook router").
			Mark(ierr.ErrSystem)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}

	s.logger.Info("webhook service started successfully")
	return nil
}

// Stop closes the router first so no message is consumed after the publisher
// is gone
func (s *WebhookService) Stop() error {
	s.logger.Debug("stopping webhook service")

	if s.cancel != nil {
		if err := s.router.Close(); err != nil {
			s.logger.Errorw("failed to close webhook router", "error", err)
			return ierr.WithError(err).
				WithHint("Failed to close webhook router").
				Mark(ierr.ErrSystem)
		}
		s.cancel()
		<-s.done
	}

	if err := s.publisher.Close(); err != nil {
		s.logger.Errorw("failed to close webhook publisher", "error", err)
		return ierr.WithError(err).
			WithHint("Failed to close webhook publisher").
			Mark(ierr.ErrSystem)
	}

	s.logger.Info("webhook service stopped successfully")
	return nil
}
