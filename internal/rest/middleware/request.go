package middleware

import (
	"time"

	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	c.Request = c.Request.WithContext(types.SetRequestID(c.Request.Context(), requestID))
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// LoggingMiddleware logs one line per request once it completes
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.FullPath() == "/health" {
			return
		}

		ctx := c.Request.Context()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", types.GetRequestID(ctx),
			"tenant_id", types.GetTenantID(ctx),
		}
		if len(c.Errors) > 0 {
			log.Warnw("request failed", append(fields, "error", c.Errors.Last().Err)...)
			return
		}
		log.Infow("request completed", fields...)
	}
}
