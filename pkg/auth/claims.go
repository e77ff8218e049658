package auth

import (
	"time"

	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPayload captures the data available when minting a JWT.
type TokenPayload struct {
	UserID uuid.UUID
	Role   enums.GlobalRole
	Kind   enums.TokenKind
	// JTI defaults to a random UUID.
	JTI string
	// ExpiresAt overrides the kind's default TTL. Used to carry a refresh token's
	// original expiry across rotations.
	ExpiresAt *time.Time
}

// Claims represents the typed JWT issued to clients. The subject carries the user id.
type Claims struct {
	Role enums.GlobalRole `json:"role"`
	Kind enums.TokenKind  `json:"kind"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim. It returns uuid.Nil when the subject is malformed.
func (c *Claims) UserID() uuid.UUID {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Expiry returns the expiration time, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
