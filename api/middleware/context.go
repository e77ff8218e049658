package middleware

import (
	"context"

	"github.com/angelmondragon/boxlink-backend/internal/authz"
)

// UserIDFromContext returns the authenticated user id, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	caller, ok := authz.CallerFromContext(ctx)
	if !ok {
		return ""
	}
	return caller.UserID.String()
}
