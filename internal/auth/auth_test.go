package auth

import (
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey(t *testing.T) {
	key := GenerateAPIKey()
	cfg := config.GetDefaultConfig()
	cfg.Auth.APIKey.Keys = map[string]config.APIKeyDetails{
		HashAPIKey(key):       {TenantID: "tenant_1", UserID: "user_1", IsActive: true},
		HashAPIKey("revoked"): {TenantID: "tenant_1", UserID: "user_2", IsActive: false},
	}

	tenantID, userID, ok := ValidateAPIKey(cfg, key)
	require.True(t, ok)
	assert.Equal(t, "tenant_1", tenantID)
	assert.Equal(t, "user_1", userID)

	_, _, ok = ValidateAPIKey(cfg, "revoked")
	assert.False(t, ok)
	_, _, ok = ValidateAPIKey(cfg, "unknown")
	assert.False(t, ok)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "user_1", "tenant_1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID)
	assert.Equal(t, "tenant_1", claims.TenantID)
}

func TestValidateTokenRejects(t *testing.T) {
	valid, err := GenerateToken("secret", "user_1", "tenant_1", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("secret", "user_1", "tenant_1", -time.Hour)
	require.NoError(t, err)
	noTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user_1"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "wrong secret", secret: "other", token: valid},
		{name: "expired", secret: "secret", token: expired},
		{name: "missing tenant", secret: "secret", token: noTenant},
		{name: "garbage", secret: "secret", token: "not-a-token"},
		{name: "not configured", secret: "", token: valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.secret, tt.token)
			require.Error(t, err)
			assert.True(t, ierr.IsPermissionDenied(err))
		})
	}
}
