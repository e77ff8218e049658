package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// ErrInvalidToken is returned for any token that fails signature, expiry, format or kind checks.
var ErrInvalidToken = errors.New("invalid token")

// Issuer mints and validates signed tokens. Validation never touches a store.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source used during validation.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer builds an Issuer from JWT configuration.
func NewIssuer(cfg config.JWTConfig, opts ...IssuerOption) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("jwt issuer is required")
	}
	if cfg.AccessTokenTTL() <= 0 {
		return nil, fmt.Errorf("jwt expiration minutes must be positive")
	}
	if cfg.RefreshTokenTTL() <= cfg.AccessTokenTTL() {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", cfg.RefreshTokenTTL(), cfg.AccessTokenTTL())
	}

	issuer := &Issuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// TTL returns the default lifetime of a token kind.
func (i *Issuer) TTL(kind enums.TokenKind) time.Duration {
	if kind == enums.TokenKindRefresh {
		return i.refreshTTL
	}
	return i.accessTTL
}

// Issue signs a token for the payload. The returned claims mirror what was signed.
func (i *Issuer) Issue(now time.Time, payload TokenPayload) (string, *Claims, error) {
	if payload.UserID == uuid.Nil {
		return "", nil, fmt.Errorf("user id is required")
	}
	if !payload.Role.IsValid() {
		return "", nil, fmt.Errorf("invalid global role %q", payload.Role)
	}
	if !payload.Kind.IsValid() {
		return "", nil, fmt.Errorf("invalid token kind %q", payload.Kind)
	}

	expiry := now.Add(i.TTL(payload.Kind))
	if payload.ExpiresAt != nil {
		if !payload.ExpiresAt.After(now) {
			return "", nil, ErrInvalidToken
		}
		expiry = *payload.ExpiresAt
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := &Claims{
		Role: payload.Role,
		Kind: payload.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.UserID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing jwt: %w", err)
	}
	return signed, claims, nil
}

// Validate verifies signature, issuer and expiry and returns the typed claims.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID() == uuid.Nil {
		return nil, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	if !claims.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, claims.Kind)
	}
	if strings.TrimSpace(claims.ID) == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateKind validates the token and additionally requires the given kind.
func (i *Issuer) ValidateKind(tokenString string, kind enums.TokenKind) (*Claims, error) {
	claims, err := i.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token's own lifetime is left untouched.
func (i *Issuer) Refresh(now time.Time, refreshToken string) (string, *Claims, error) {
	claims, err := i.ValidateKind(refreshToken, enums.TokenKindRefresh)
	if err != nil {
		return "", nil, err
	}
	return i.Issue(now, TokenPayload{
		UserID: claims.UserID(),
		Role:   claims.Role,
		Kind:   enums.TokenKindAccess,
	})
}
