package testutil

import (
	"context"

	"github.com/billforge/billforge/internal/types"
)

// SetupContext builds a context carrying the default test identity
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
