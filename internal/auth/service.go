package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/internal/users"
	pkgAuth "github.com/angelmondragon/boxlink-backend/pkg/auth"
	"github.com/angelmondragon/boxlink-backend/pkg/auth/session"
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	"github.com/angelmondragon/boxlink-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage  = "invalid credentials"
	invalidRefreshTokenMessage = "invalid refresh token"
	minPasswordLength          = 8
	dummyPassword              = "boxlink-timing-equalizer"
)

// Service defines the behavior needed by the auth and account controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, caller authz.Caller, req ChangePasswordRequest) error
	UpdateProfile(ctx context.Context, caller authz.Caller, req UpdateProfileRequest) (*users.UserDTO, error)
	UpdatePreferences(ctx context.Context, caller authz.Caller, req UpdatePreferencesRequest) (*users.UserDTO, error)
	Me(ctx context.Context, caller authz.Caller) (*users.UserDTO, error)
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type membershipLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]memberships.MembershipWithGym, error)
}

type tokenIssuer interface {
	Issue(now time.Time, payload pkgAuth.TokenPayload) (string, *pkgAuth.Claims, error)
	ValidateKind(tokenString string, kind enums.TokenKind) (*pkgAuth.Claims, error)
}

type sessionRegistry interface {
	Register(ctx context.Context, jti string, userID uuid.UUID, ttl time.Duration) error
	Rotate(ctx context.Context, oldJTI string, userID uuid.UUID, ttl time.Duration) (string, error)
	Revoke(ctx context.Context, jti string) error
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Users       userRepository
	Memberships membershipLister
	Tokens      tokenIssuer
	Sessions    sessionRegistry
	Hasher      passwordHasher
	Metrics     *metrics.AuthMetrics
	Logger      *logger.Logger
	Clock       func() time.Time
}

type service struct {
	users       userRepository
	memberships membershipLister
	tokens      tokenIssuer
	sessions    sessionRegistry
	hasher      passwordHasher
	metrics     *metrics.AuthMetrics
	logg        *logger.Logger
	now         func() time.Time

	// dummyHash is verified for unknown emails.
	dummyHash string
}

// NewService constructs the authentication service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Memberships == nil {
		return nil, fmt.Errorf("memberships repository is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	dummyHash, err := params.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &service{
		users:       params.Users,
		memberships: params.Memberships,
		tokens:      params.Tokens,
		sessions:    params.Sessions,
		hasher:      params.Hasher,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         clock,
		dummyHash:   dummyHash,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		s.metrics.IncLogin(metrics.OutcomeFailure)
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now
	s.upgradeHash(ctx, user, req.Password)

	list, err := s.memberships.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gyms")
	}

	pair, err := s.issuePair(ctx, user, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncLogin(metrics.OutcomeSuccess)
	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, user.ID.String())
		s.logg.Info(logCtx, "user logged in")
	}

	return &LoginResponse{
		TokenPair: *pair,
		User:      users.FromModel(user),
		Gyms:      gymSummaries(list),
	}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ValidateKind(refreshToken, enums.TokenKindRefresh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidRefreshTokenMessage)
	}

	now := s.now().UTC()
	expiry := claims.Expiry()
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidRefreshTokenMessage)
	}

	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidRefreshTokenMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.Enabled {
		_ = s.sessions.Revoke(ctx, claims.ID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidRefreshTokenMessage)
	}

	newJTI, err := s.sessions.Rotate(ctx, claims.ID, user.ID, remaining)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidRefreshTokenMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh session")
	}

	refresh, refreshClaims, err := s.tokens.Issue(now, pkgAuth.TokenPayload{
		UserID:    user.ID,
		Role:      user.Role,
		Kind:      enums.TokenKindRefresh,
		JTI:       newJTI,
		ExpiresAt: &expiry,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint refresh token")
	}
	access, accessClaims, err := s.tokens.Issue(now, pkgAuth.TokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Kind:   enums.TokenKindAccess,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.Expiry(),
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.Expiry(),
	}, nil
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ValidateKind(refreshToken, enums.TokenKindRefresh)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidRefreshTokenMessage)
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke refresh session")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	normalized := users.NormalizeEmail(email)
	if normalized == "" {
		s.equalizeTiming(password)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.equalizeTiming(password)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := s.matches(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.Enabled {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// equalizeTiming runs one verification against a fixed hash so unknown emails
// cost the same as a wrong password.
func (s *service) equalizeTiming(password string) {
	_, _ = s.matches(password, s.dummyHash)
}

// upgradeHash re-encodes the password when the stored hash predates the
// current argon2 settings. Failure is logged and does not block the login.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	encoded, err := s.hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, encoded)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "error": err.Error()}), "auth.password_rehash_failed")
		return
	}
	user.PasswordHash = encoded
}

func (s *service) matches(password, encoded string) (bool, error) {
	start := time.Now()
	ok, err := s.hasher.Matches(password, encoded)
	s.metrics.ObserveHash("verify", time.Since(start))
	return ok, err
}

func (s *service) hash(password string) (string, error) {
	start := time.Now()
	encoded, err := s.hasher.Hash(password)
	s.metrics.ObserveHash("hash", time.Since(start))
	return encoded, err
}

func (s *service) issuePair(ctx context.Context, user *models.User, now time.Time) (*TokenPair, error) {
	refresh, refreshClaims, err := s.tokens.Issue(now, pkgAuth.TokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Kind:   enums.TokenKindRefresh,
		JTI:    session.NewSessionID(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint refresh token")
	}
	if err := s.sessions.Register(ctx, refreshClaims.ID, user.ID, refreshClaims.Expiry().Sub(now)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh session")
	}

	access, accessClaims, err := s.tokens.Issue(now, pkgAuth.TokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		Kind:   enums.TokenKindAccess,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.Expiry(),
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.Expiry(),
	}, nil
}

func gymSummaries(list []memberships.MembershipWithGym) []GymSummary {
	out := make([]GymSummary, 0, len(list))
	for _, m := range list {
		out = append(out, GymSummary{
			ID:               m.GymID,
			Name:             m.GymName,
			Status:           m.GymStatus,
			Role:             m.Role,
			MembershipStatus: m.Status,
			Permissions:      m.Permissions,
		})
	}
	return out
}
