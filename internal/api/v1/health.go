package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewHealthHandler(db postgres.IClient, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// @Summary Health check
// @Description Reports whether the database is reachable
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var one int
	if err := h.db.Querier(ctx).GetContext(ctx, &one, "SELECT 1"); err != nil {
		h.logger.Warnw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
