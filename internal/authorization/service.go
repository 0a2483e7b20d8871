package authorization

import "context"

// Service decides whether an actor may perform action on object within a landlord's records.
// Actors are "system" or "user:<snowflake id>".
type Service interface {
	Authorize(ctx context.Context, actor string, ownerID string, object string, action string) error
}
