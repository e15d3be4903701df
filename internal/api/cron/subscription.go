package cron

import (
	"context"
	"net/http"

	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/service"
	"github.com/gin-gonic/gin"
)

// ProfileRepairStarter hands the profile repair to a background workflow
type ProfileRepairStarter interface {
	StartProfileRepair(ctx context.Context) (string, error)
}

// SubscriptionHandler handles subscription related cron jobs
type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	sweepService        service.SweepService
	workflows           ProfileRepairStarter
	logger              *logger.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(
	subscriptionService service.SubscriptionService,
	sweepService service.SweepService,
	workflows ProfileRepairStarter,
	logger *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		sweepService:        sweepService,
		workflows:           workflows,
		logger:              logger,
	}
}

// ExpireSubscriptions expires due subscriptions of every tenant
func (h *SubscriptionHandler) ExpireSubscriptions(c *gin.Context) {
	h.logger.Infow("starting subscription expiration cron job")

	response, err := h.sweepService.ExpireDueAllTenants(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to expire subscriptions",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed subscription expiration cron job",
		"succeeded", response.Succeeded,
		"failed", response.Failed)
	c.JSON(http.StatusOK, response)
}

// RetryFailingSubscriptions retries the payment of due failing subscriptions of every tenant
func (h *SubscriptionHandler) RetryFailingSubscriptions(c *gin.Context) {
	h.logger.Infow("starting payment retry cron job")

	response, err := h.sweepService.RetryFailingAllTenants(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to retry failing subscriptions",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed payment retry cron job",
		"succeeded", response.Succeeded,
		"failed", response.Failed)
	c.JSON(http.StatusOK, response)
}

// RepairDuplicateProfiles clears gateway profiles shared by more than one
// subscription of the calling tenant. With async=true and a workflow starter
// configured the repair runs in the background and 202 is returned.
func (h *SubscriptionHandler) RepairDuplicateProfiles(c *gin.Context) {
	if h.workflows != nil && c.Query("async") == "true" {
		workflowID, err := h.workflows.StartProfileRepair(c.Request.Context())
		if err != nil {
			h.logger.Errorw("failed to start profile repair workflow",
				"error", err)
			c.Error(err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"workflow_id": workflowID})
		return
	}

	response, err := h.subscriptionService.RepairDuplicateProfiles(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to repair duplicate profiles",
			"error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
