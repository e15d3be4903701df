package v1

import (
	"net/http"

	"github.com/flexprice/recurring/internal/api/dto"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/types"
	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	service   service.SubscriptionService
	lifecycle service.LifecycleService
	retry     service.RetryService
	log       *logger.Logger
}

func NewSubscriptionHandler(
	service service.SubscriptionService,
	lifecycle service.LifecycleService,
	retry service.RetryService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:   service,
		lifecycle: lifecycle,
		retry:     retry,
		log:       log,
	}
}

// @Summary Get subscription
// @Description Get a subscription with its notes, billing count and customer
// @Tags Subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	resp, err := h.service.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List subscriptions
// @Description Get subscriptions with optional filtering
// @Tags Subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Param filter query types.SubscriptionFilter false "Filter"
// @Success 200 {object} dto.ListSubscriptionsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var filter types.SubscriptionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListSubscriptions(c.Request.Context(), &filter)
	if err != nil {
		h.log.Errorw("failed to list subscriptions", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update subscription
// @Description Edit the recurring amount, bill times, expiration, price or gateway profile
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Subscription ID"
// @Param request body dto.UpdateSubscriptionRequest true "Update Subscription Request"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /subscriptions/{id} [patch]
func (h *SubscriptionHandler) UpdateSubscription(c *gin.Context) {
	var req dto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateSubscription(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.log.Errorw("failed to update subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Add subscription note
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Subscription ID"
// @Param request body dto.AddSubscriptionNoteRequest true "Note"
// @Success 201 {object} subscription.Note
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/notes [post]
func (h *SubscriptionHandler) AddNote(c *gin.Context) {
	var req dto.AddSubscriptionNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	note, err := h.service.AddNote(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

// @Summary Cancel subscription
// @Description Cancel a subscription and its gateway profile. Access continues until the expiration.
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Subscription ID"
// @Param request body dto.CancelSubscriptionRequest false "Cancel Subscription Request"
// @Success 200 {object} dto.LifecycleResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	result, err := h.lifecycle.Cancel(c.Request.Context(), c.Param("id"), service.CancelOptions{Reason: req.Reason})
	if err != nil {
		h.log.Errorw("failed to cancel subscription", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result.ToResponse())
}

// @Summary Check retry eligibility
// @Tags Subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.CanRetryResponse
// @Router /subscriptions/{id}/retry [get]
func (h *SubscriptionHandler) CanRetry(c *gin.Context) {
	resp, err := h.retry.CanRetry(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Retry payment
// @Description Charge a failing subscription again through its gateway
// @Tags Subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.RetryResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/retry [post]
func (h *SubscriptionHandler) RetryPayment(c *gin.Context) {
	resp, err := h.retry.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Warnw("payment retry failed", "subscription_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
