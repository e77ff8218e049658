package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

// Caller is the authenticated identity handed explicitly to every service call.
type Caller struct {
	UserID uuid.UUID
	Role   enums.GlobalRole
}

// Valid reports whether the caller carries a usable identity.
func (c Caller) Valid() bool {
	return c.UserID != uuid.Nil && c.Role.IsValid()
}

// IsAdmin reports whether the caller holds the platform ADMIN role.
func (c Caller) IsAdmin() bool {
	return c.Role == enums.GlobalRoleAdmin
}

type callerKey struct{}

// WithCaller stores the caller on the request context. Only the HTTP layer reads it back;
// services always receive the caller as an argument.
func WithCaller(ctx context.Context, c Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.Valid()
}
