package pyroscope

import (
	"context"
	"testing"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
)

func TestProfileTypes(t *testing.T) {
	cfg := config.GetDefaultConfig()
	svc := NewPyroscopeService(cfg, logger.NewNopLogger())
	assert.Len(t, svc.profileTypes(), 4)

	cfg.Pyroscope.ProfileTypes = []string{"CPU", "goroutines", "bogus"}
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileGoroutines}, svc.profileTypes())
}

func TestTagWrapperRunsWhenDisabled(t *testing.T) {
	svc := NewPyroscopeService(config.GetDefaultConfig(), logger.NewNopLogger())

	ran := false
	svc.TagWrapper(context.Background(), map[string]string{"sweep": "expire"}, func(context.Context) {
		ran = true
	})
	assert.True(t, ran)
}
