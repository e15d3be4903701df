package middleware

import (
	"context"

	"github.com/flexprice/recurring/internal/pyroscope"
	"github.com/gin-gonic/gin"
)

// PyroscopeMiddleware labels profiles collected while a request is handled with its route
func PyroscopeMiddleware(svc *pyroscope.Service) gin.HandlerFunc {
	if !svc.IsEnabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		labels := map[string]string{
			"method":   c.Request.Method,
			"endpoint": c.FullPath(),
		}
		if gw := c.Param("gateway"); gw != "" {
			labels["gateway"] = gw
		}
		svc.TagWrapper(c.Request.Context(), labels, func(ctx context.Context) {
			c.Next()
		})
	}
}
