package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "user=recurring password= dbname=recurring host=localhost port=5432 sslmode=disable", cfg.Postgres.GetDSN())
}

func TestValidateRejectsUnknownLocker(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Locker.Type = "redis"
	assert.Error(t, cfg.Validate())
}

func TestNewConfigReadsEnvironment(t *testing.T) {
	t.Setenv("RECURRING_SERVER_ADDRESS", ":9999")
	t.Setenv("RECURRING_GATEWAY_TIMEOUT", "3s")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "3s", cfg.Gateway.Timeout.String())
}
