package v1

import (
	"net/http"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/types"
	"github.com/gin-gonic/gin"
)

type EventsHandler struct {
	service service.EventLogService
}

func NewEventsHandler(service service.EventLogService) *EventsHandler {
	return &EventsHandler{service: service}
}

// @Summary List gateway events
// @Description Inbound gateway events with the outcome of their dispatch
// @Tags Events
// @Produce json
// @Security ApiKeyAuth
// @Param filter query types.GatewayEventFilter false "Filter"
// @Success 200 {object} dto.ListGatewayEventsResponse
// @Router /events [get]
func (h *EventsHandler) ListEvents(c *gin.Context) {
	var filter types.GatewayEventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListEvents(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
