package v1

import (
	"io"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/s3"
	"github.com/flexprice/recurring/internal/sentry"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/types"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps accepted gateway deliveries
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	dispatcher service.WebhookDispatcher
	// archive is nil when raw payloads are not archived
	archive s3.Service
	sentry  *sentry.Service
	logger  *logger.Logger
}

func NewWebhookHandler(dispatcher service.WebhookDispatcher, archive s3.Service, sentry *sentry.Service, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		archive:    archive,
		sentry:     sentry,
		logger:     logger,
	}
}

// @Summary Receive gateway webhook
// @Description Any non 2xx response asks the gateway to redeliver the event
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param gateway path string true "Gateway" Enums(stripe, paypal, manual)
// @Param tenant_id path string true "Tenant ID"
// @Param environment_id path string true "Environment ID"
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} dto.WebhookResponse
// @Failure 500 {object} dto.WebhookResponse
// @Router /webhooks/{gateway}/{tenant_id}/{environment_id} [post]
func (h *WebhookHandler) HandleGatewayWebhook(c *gin.Context) {
	gw := types.GatewayType(c.Param("gateway"))
	receivedAt := time.Now().UTC()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	span, ctx := h.sentry.StartGatewaySpan(c.Request.Context(), gw)
	result, err := h.dispatcher.Handle(ctx, gw, body, c.Request.Header)
	if err != nil {
		sentry.Finish(span, err)
		h.logger.Warnw("rejected gateway webhook",
			"gateway", gw,
			"tenant_id", types.GetTenantID(ctx),
			"error", err)
		c.Error(err)
		return
	}
	sentry.Finish(span, result.Err)
	h.archivePayload(c, gw, result.EventID, receivedAt, body)

	if result.Err != nil && !ierr.IsVersionConflict(result.Err) && !ierr.IsReconciliation(result.Err) {
		h.sentry.CaptureException(ctx, result.Err)
	}
	c.JSON(result.StatusCode(), result.ToResponse())
}

// archivePayload keeps the raw delivery for audits. Failures are logged and never fail the delivery.
func (h *WebhookHandler) archivePayload(c *gin.Context, gw types.GatewayType, eventID string, receivedAt time.Time, body []byte) {
	if h.archive == nil {
		return
	}

	ctx := c.Request.Context()
	key, err := h.archive.ArchivePayload(ctx, &s3.GatewayPayload{
		TenantID:      types.GetTenantID(ctx),
		EnvironmentID: types.GetEnvironmentID(ctx),
		Gateway:       gw,
		EventID:       eventID,
		ReceivedAt:    receivedAt,
		Data:          body,
	})
	if err != nil {
		h.logger.Errorw("failed to archive gateway payload", "gateway", gw, "event_id", eventID, "error", err)
		h.sentry.CaptureException(ctx, err)
		return
	}
	h.logger.Debugw("archived gateway payload", "key", key)
}
