package middleware

import (
	"time"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/types"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// SentryMiddleware captures panics and traces requests when Sentry is enabled
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Sentry.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// SentryErrorReporter reports 5xx errors attached to the request
func SentryErrorReporter(cfg *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !cfg.Sentry.Enabled || len(c.Errors) == 0 || c.Writer.Status() < 500 {
			return
		}
		hub := sentrygin.GetHubFromContext(c)
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("tenant_id", types.GetTenantID(c.Request.Context()))
			scope.SetTag("request_id", types.GetRequestID(c.Request.Context()))
			scope.SetTag("path", c.FullPath())
			hub.CaptureException(c.Errors.Last().Err)
		})
	}
}
