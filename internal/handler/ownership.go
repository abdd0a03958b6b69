package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/auth"
)

// ownerFromPath resolves the {id} path segment and requires it to match the
// authenticated user. Mismatches read as not-found so the route does not leak
// which resources exist.
func ownerFromPath(r *http.Request) (uuid.UUID, *AppError) {
	authUserID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}

	if userID != authUserID {
		return uuid.Nil, ErrResourceNotFound
	}

	return userID, nil
}
