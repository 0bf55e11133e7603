package store

import (
	"context"

	"github.com/google/uuid"
)

// The acting user for a request is bound to its context exactly once,
// after the credential layer has resolved the presented token. Every
// owner-scoped statement executed through a Scope is constrained to this
// identity; code outside this package cannot substitute another one.

type actorKey struct{}

// WithActor returns a context carrying the resolved acting-user identity.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom extracts the acting-user identity from the context. The
// second return is false for unauthenticated requests.
func ActorFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorKey{}).(uuid.UUID)
	return id, ok
}
