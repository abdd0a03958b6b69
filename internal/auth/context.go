package auth

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

// ContextWithUserID stores the authenticated user's ID on the context. Only
// the ID travels this way; role and status are always re-read from the
// database by whoever needs them.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}
