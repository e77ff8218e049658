package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/internal/users"
	pkgAuth "github.com/angelmondragon/boxlink-backend/pkg/auth"
	"github.com/angelmondragon/boxlink-backend/pkg/auth/session"
	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/migrate"
	"github.com/angelmondragon/boxlink-backend/pkg/security"
)

const testPassword = "correct-horse-battery"

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]uuid.UUID
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]uuid.UUID{}}
}

func (m *memorySessions) Register(_ context.Context, jti string, userID uuid.UUID, ttl time.Duration) error {
	if ttl <= 0 {
		return session.ErrInvalidRefreshToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[jti] = userID
	return nil
}

func (m *memorySessions) Rotate(_ context.Context, oldJTI string, userID uuid.UUID, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.sessions[oldJTI]
	delete(m.sessions, oldJTI)
	if !ok || owner != userID {
		return "", session.ErrInvalidRefreshToken
	}
	next := session.NewSessionID()
	m.sessions[next] = userID
	return next, nil
}

func (m *memorySessions) Revoke(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, jti)
	return nil
}

func (m *memorySessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type countingHasher struct {
	*security.Hasher
	mu      sync.Mutex
	matches int
	hashes  int
}

func (c *countingHasher) Hash(plaintext string) (string, error) {
	c.mu.Lock()
	c.hashes++
	c.mu.Unlock()
	return c.Hasher.Hash(plaintext)
}

func (c *countingHasher) hashCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hashes
}

func (c *countingHasher) Matches(plaintext, encoded string) (bool, error) {
	c.mu.Lock()
	c.matches++
	c.mu.Unlock()
	return c.Hasher.Matches(plaintext, encoded)
}

func (c *countingHasher) matchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matches
}

type fixture struct {
	conn     *gorm.DB
	users    *users.Repository
	issuer   *pkgAuth.Issuer
	sessions *memorySessions
	hasher   *countingHasher
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.ApplySQLiteSchema(context.Background(), conn))

	issuer, err := pkgAuth.NewIssuer(config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "boxlink-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60 * 24,
	})
	require.NoError(t, err)

	hasher := &countingHasher{Hasher: security.NewHasher(config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})}

	userRepo := users.NewRepository(conn)
	sessions := newMemorySessions()
	svc, err := NewService(ServiceParams{
		Users:       userRepo,
		Memberships: memberships.NewRepository(conn),
		Tokens:      issuer,
		Sessions:    sessions,
		Hasher:      hasher,
	})
	require.NoError(t, err)

	return &fixture{conn: conn, users: userRepo, issuer: issuer, sessions: sessions, hasher: hasher, svc: svc}
}

func (f *fixture) register(t *testing.T, email string) authz.Caller {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ana",
		LastName:  "Lopez",
		Email:     email,
		Password:  testPassword,
	})
	require.NoError(t, err)
	return authz.Caller{UserID: user.ID, Role: user.Role}
}

func (f *fixture) storedHash(t *testing.T, id uuid.UUID) string {
	t.Helper()
	user, err := f.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user.PasswordHash
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, pkgerrors.CodeOf(err), "unexpected error: %v", err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

type brokenHasher struct {
	*security.Hasher
}

func (brokenHasher) Hash(string) (string, error) {
	return "", errors.New("entropy unavailable")
}

func TestNewServicePreparesDummyHashUpFront(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, 1, f.hasher.hashCount())
	require.NotEmpty(t, f.svc.(*service).dummyHash)

	_, err := NewService(ServiceParams{
		Users:       f.users,
		Memberships: memberships.NewRepository(f.conn),
		Tokens:      f.issuer,
		Sessions:    f.sessions,
		Hasher:      brokenHasher{Hasher: f.hasher.Hasher},
	})
	require.ErrorContains(t, err, "dummy hash")
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	caller := f.register(t, "  Athlete@Example.COM ")
	me, err := f.svc.Me(ctx, caller)
	require.NoError(t, err)
	require.Equal(t, "athlete@example.com", me.Email)
	require.Equal(t, enums.GlobalRoleUser, me.Role)
	require.Equal(t, enums.ThemeSystem, me.Theme)
	require.Equal(t, users.DefaultLocale, me.Locale)
	require.NotEqual(t, testPassword, f.storedHash(t, caller.UserID))

	_, err = f.svc.Register(ctx, RegisterRequest{FirstName: "B", LastName: "C", Email: "ATHLETE@example.com", Password: testPassword})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.svc.Register(ctx, RegisterRequest{FirstName: "B", LastName: "C", Email: "short@example.com", Password: "short"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Register(ctx, RegisterRequest{FirstName: " ", LastName: "C", Email: "blank@example.com", Password: testPassword})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestLoginFailsUniformly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "known@example.com")
	disabled := f.register(t, "disabled@example.com")
	require.NoError(t, f.users.UpdateFields(ctx, disabled.UserID, map[string]any{"enabled": false}))

	before, hashesBefore := f.hasher.matchCount(), f.hasher.hashCount()
	_, unknownErr := f.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: testPassword})
	require.Equal(t, before+1, f.hasher.matchCount(), "unknown email must still verify a hash")
	require.Equal(t, hashesBefore, f.hasher.hashCount(), "unknown email must not derive a new hash")

	_, wrongErr := f.svc.Login(ctx, LoginRequest{Email: "known@example.com", Password: "not-the-password"})
	_, disabledErr := f.svc.Login(ctx, LoginRequest{Email: "disabled@example.com", Password: testPassword})

	for _, err := range []error{unknownErr, wrongErr, disabledErr} {
		requireCode(t, err, pkgerrors.CodeUnauthorized)
		require.Equal(t, invalidCredentialsMessage, pkgerrors.As(err).Message())
	}
	require.Zero(t, f.sessions.count())
}

func TestLoginIssuesTokensAndGyms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := f.register(t, "member@example.com")

	gym := &models.Gym{Name: "Box", EnrollmentCode: "ABC123", Status: enums.GymStatusActive, CreatedByUserID: caller.UserID}
	require.NoError(t, f.conn.Create(gym).Error)
	require.NoError(t, memberships.NewRepository(f.conn).Create(ctx, &models.GymMembership{
		GymID:  gym.ID,
		UserID: caller.UserID,
		Role:   enums.GymRoleAthlete,
		Status: enums.MembershipStatusActive,
	}))

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "MEMBER@example.com", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, caller.UserID, resp.User.ID)
	require.NotNil(t, resp.User.LastLoginAt)
	require.Len(t, resp.Gyms, 1)
	require.Equal(t, "Box", resp.Gyms[0].Name)
	require.Equal(t, enums.GymRoleAthlete, resp.Gyms[0].Role)

	access, err := f.issuer.ValidateKind(resp.AccessToken, enums.TokenKindAccess)
	require.NoError(t, err)
	require.Equal(t, caller.UserID, access.UserID())
	require.Equal(t, enums.GlobalRoleUser, access.Role)

	refresh, err := f.issuer.ValidateKind(resp.RefreshToken, enums.TokenKindRefresh)
	require.NoError(t, err)
	require.True(t, refresh.Expiry().After(access.Expiry()))
	require.Equal(t, 1, f.sessions.count())

	stored, err := f.users.FindByID(ctx, caller.UserID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
}

func TestLoginUpgradesStaleHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := f.register(t, "legacy@example.com")

	legacy, err := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1}).Hash(testPassword)
	require.NoError(t, err)
	require.NoError(t, f.users.UpdatePasswordHash(ctx, caller.UserID, legacy))

	_, err = f.svc.Login(ctx, LoginRequest{Email: "legacy@example.com", Password: testPassword})
	require.NoError(t, err)

	upgraded := f.storedHash(t, caller.UserID)
	require.NotEqual(t, legacy, upgraded)
	require.False(t, f.hasher.NeedsRehash(upgraded))

	_, err = f.svc.Login(ctx, LoginRequest{Email: "legacy@example.com", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, upgraded, f.storedHash(t, caller.UserID), "current hashes are left alone")
}

func TestRefreshRotatesWithoutExtendingExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "rotate@example.com")

	login, err := f.svc.Login(ctx, LoginRequest{Email: "rotate@example.com", Password: testPassword})
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, pair.RefreshToken)
	require.True(t, pair.RefreshExpiresAt.Equal(login.RefreshExpiresAt))

	_, err = f.issuer.ValidateKind(pair.AccessToken, enums.TokenKindAccess)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = f.svc.Refresh(ctx, login.AccessToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = f.svc.Refresh(ctx, "garbage")
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogoutRevokesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "logout@example.com")

	login, err := f.svc.Login(ctx, LoginRequest{Email: "logout@example.com", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))
	require.Zero(t, f.sessions.count())

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestChangePasswordLeavesStoreUntouchedOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := f.register(t, "change@example.com")
	original := f.storedHash(t, caller.UserID)

	err := f.svc.ChangePassword(ctx, caller, ChangePasswordRequest{
		CurrentPassword:      "wrong-password",
		NewPassword:          "brand-new-password",
		PasswordConfirmation: "brand-new-password",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	require.Equal(t, "current password is incorrect", pkgerrors.As(err).Message())
	require.Equal(t, original, f.storedHash(t, caller.UserID))

	err = f.svc.ChangePassword(ctx, caller, ChangePasswordRequest{
		CurrentPassword:      testPassword,
		NewPassword:          "brand-new-password",
		PasswordConfirmation: "brand-new-passwrod",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	require.Equal(t, "password confirmation does not match", pkgerrors.As(err).Message())
	require.Equal(t, original, f.storedHash(t, caller.UserID))

	require.NoError(t, f.svc.ChangePassword(ctx, caller, ChangePasswordRequest{
		CurrentPassword:      testPassword,
		NewPassword:          "brand-new-password",
		PasswordConfirmation: "brand-new-password",
	}))
	require.NotEqual(t, original, f.storedHash(t, caller.UserID))

	_, err = f.svc.Login(ctx, LoginRequest{Email: "change@example.com", Password: testPassword})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	_, err = f.svc.Login(ctx, LoginRequest{Email: "change@example.com", Password: "brand-new-password"})
	require.NoError(t, err)
}

func TestProfileAndPreferencesArePartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := f.register(t, "prefs@example.com")

	first := "  Maria "
	updated, err := f.svc.UpdateProfile(ctx, caller, UpdateProfileRequest{FirstName: &first})
	require.NoError(t, err)
	require.Equal(t, "Maria", updated.FirstName)
	require.Equal(t, "Lopez", updated.LastName)

	blank := " "
	_, err = f.svc.UpdateProfile(ctx, caller, UpdateProfileRequest{LastName: &blank})
	requireCode(t, err, pkgerrors.CodeValidation)

	dark := enums.ThemeDark
	updated, err = f.svc.UpdatePreferences(ctx, caller, UpdatePreferencesRequest{Theme: &dark})
	require.NoError(t, err)
	require.Equal(t, enums.ThemeDark, updated.Theme)
	require.Equal(t, users.DefaultLocale, updated.Locale)

	locale := "es-MX"
	updated, err = f.svc.UpdatePreferences(ctx, caller, UpdatePreferencesRequest{Locale: &locale})
	require.NoError(t, err)
	require.Equal(t, "es-MX", updated.Locale)
	require.Equal(t, enums.ThemeDark, updated.Theme)

	bogus := enums.Theme("NEON")
	_, err = f.svc.UpdatePreferences(ctx, caller, UpdatePreferencesRequest{Theme: &bogus})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Me(ctx, authz.Caller{})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}
