package testutil

import (
	"context"

	"github.com/flexprice/recurring/internal/types"
)

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetTenantID(ctx, types.DefaultTenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	ctx = types.SetEnvironmentID(ctx, "env_sandbox")
	return ctx
}
