package ownercontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ownerKey struct{}

// WithOwnerID stores the landlord the request acts for.
func WithOwnerID(ctx context.Context, ownerID snowflake.ID) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerIDFromContext returns the landlord id, if the caller was authenticated as one.
func OwnerIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(ownerKey{}).(snowflake.ID)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
