package middleware

import (
	"strings"

	"github.com/flexprice/recurring/internal/auth"
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
	"github.com/gin-gonic/gin"
)

// AuthenticateMiddleware resolves the calling operator from either an API key in the
// configured header or a bearer token, and sets tenant, user and environment in the context
func AuthenticateMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, userID, err := authenticate(cfg, c)
		if err != nil {
			logger.Debugw("rejected request", "path", c.FullPath(), "error", err)
			_ = c.Error(err)
			c.Abort()
			return
		}

		ctx := types.SetTenantID(c.Request.Context(), tenantID)
		ctx = types.SetUserID(ctx, userID)
		if environmentID := c.GetHeader(types.HeaderEnvironment); environmentID != "" {
			ctx = types.SetEnvironmentID(ctx, environmentID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func authenticate(cfg *config.Configuration, c *gin.Context) (string, string, error) {
	if apiKey := c.GetHeader(cfg.Auth.APIKey.Header); apiKey != "" {
		tenantID, userID, valid := auth.ValidateAPIKey(cfg, apiKey)
		if !valid || tenantID == "" || userID == "" {
			return "", "", ierr.NewError("invalid api key").
				WithHint("Invalid API key").
				Mark(ierr.ErrPermissionDenied)
		}
		return tenantID, userID, nil
	}

	authHeader := c.GetHeader(types.HeaderAuthorization)
	if authHeader == "" {
		return "", "", ierr.NewError("missing credentials").
			WithHint("Unauthorized").
			Mark(ierr.ErrPermissionDenied)
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", "", ierr.NewError("malformed authorization header").
			WithHint("Invalid authorization header format").
			Mark(ierr.ErrPermissionDenied)
	}

	claims, err := auth.ValidateToken(cfg.Auth.Secret, token)
	if err != nil {
		return "", "", err
	}
	return claims.TenantID, claims.UserID, nil
}

// GatewayWebhookMiddleware scopes a gateway delivery to the tenant and environment
// in its URL. Gateways authenticate through the event signature checked by the adapter.
func GatewayWebhookMiddleware(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	environmentID := c.Param("environment_id")
	if tenantID == "" || environmentID == "" {
		_ = c.Error(ierr.NewError("tenant and environment are required").
			WithHint("Webhook URL must include tenant_id and environment_id").
			Mark(ierr.ErrValidation))
		c.Abort()
		return
	}

	ctx := types.SetTenantID(c.Request.Context(), tenantID)
	ctx = types.SetEnvironmentID(ctx, environmentID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}
