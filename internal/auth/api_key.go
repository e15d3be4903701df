package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/flexprice/recurring/internal/config"
)

// HashAPIKey creates a SHA-256 hash of the API key
func HashAPIKey(key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateAPIKey generates a new API key.
// The key is returned raw, only its hash belongs in config.
func GenerateAPIKey() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return "sk_" + hex.EncodeToString(key)
}

// ValidateAPIKey returns the tenant and user owning key
func ValidateAPIKey(cfg *config.Configuration, key string) (string, string, bool) {
	details, exists := cfg.Auth.APIKey.Keys[HashAPIKey(key)]
	if !exists || !details.IsActive {
		return "", "", false
	}
	return details.TenantID, details.UserID, true
}
