package testutil

import (
	"context"

	"github.com/billforge/billforge/internal/types"
)

// GetContext returns a context carrying test identities, matching what the
// request middleware would have set
func GetContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	ctx = context.WithValue(ctx, types.CtxUserID, types.DefaultUserID)
	return ctx
}
