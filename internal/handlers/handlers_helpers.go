package handlers

import (
	"context"

	"github.com/google/uuid"

	"admin-console-backend/internal/auth"
)

// authUserID extracts the authenticated user ID placed in the context by the
// JWT middleware.
func authUserID(ctx context.Context) (uuid.UUID, bool) {
	return auth.GetUserIDFromContext(ctx)
}
