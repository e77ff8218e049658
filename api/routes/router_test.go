package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/boxlink-backend/internal/auth"
	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/gyms"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/internal/users"
	pkgauth "github.com/angelmondragon/boxlink-backend/pkg/auth"
	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	"github.com/angelmondragon/boxlink-backend/pkg/metrics"
)

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *memoryRedis) ThrottleKey(parts ...string) string { return "throttle:" + strings.Join(parts, ":") }

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type stubPermissions struct {
	grants map[uuid.UUID]enums.PermissionSet
}

func (s stubPermissions) RequirePermission(_ context.Context, userID, _ uuid.UUID, perm enums.Permission) error {
	if s.grants[userID].Has(perm) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient gym permissions")
}

// stubServices satisfies every service interface with empty results.
type stubServices struct {
	registered int
}

func (s *stubServices) Register(context.Context, auth.RegisterRequest) (*users.UserDTO, error) {
	s.registered++
	return &users.UserDTO{ID: uuid.New()}, nil
}
func (s *stubServices) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{}, nil
}
func (s *stubServices) Refresh(context.Context, string) (*auth.TokenPair, error) {
	return &auth.TokenPair{}, nil
}
func (s *stubServices) Logout(context.Context, string) error { return nil }
func (s *stubServices) ChangePassword(context.Context, authz.Caller, auth.ChangePasswordRequest) error {
	return nil
}
func (s *stubServices) UpdateProfile(context.Context, authz.Caller, auth.UpdateProfileRequest) (*users.UserDTO, error) {
	return &users.UserDTO{}, nil
}
func (s *stubServices) UpdatePreferences(context.Context, authz.Caller, auth.UpdatePreferencesRequest) (*users.UserDTO, error) {
	return &users.UserDTO{}, nil
}
func (s *stubServices) Me(_ context.Context, caller authz.Caller) (*users.UserDTO, error) {
	return &users.UserDTO{ID: caller.UserID}, nil
}

type stubGyms struct{}

func (stubGyms) CreateGym(context.Context, authz.Caller, gyms.CreateGymInput) (*gyms.GymSettingsDTO, error) {
	return &gyms.GymSettingsDTO{}, nil
}
func (stubGyms) UpdateGymSettings(context.Context, authz.Caller, uuid.UUID, gyms.SettingsUpdate) (*gyms.GymSettingsDTO, error) {
	return &gyms.GymSettingsDTO{}, nil
}
func (stubGyms) Get(context.Context, uuid.UUID) (*gyms.GymDTO, error) { return &gyms.GymDTO{}, nil }
func (stubGyms) GetByName(context.Context, string) (*gyms.GymDTO, error) {
	return &gyms.GymDTO{}, nil
}
func (stubGyms) GetSettings(context.Context, authz.Caller, uuid.UUID) (*gyms.GymSettingsDTO, error) {
	return &gyms.GymSettingsDTO{}, nil
}
func (stubGyms) Transition(context.Context, authz.Caller, uuid.UUID, enums.GymStatus) (*gyms.ReviewDTO, error) {
	return &gyms.ReviewDTO{}, nil
}
func (stubGyms) ListPending(context.Context, authz.Caller) ([]gyms.ReviewDTO, error) {
	return []gyms.ReviewDTO{}, nil
}

type stubAuthority struct{}

func (stubAuthority) Join(context.Context, authz.Caller, uuid.UUID, string) (*memberships.MembershipDTO, error) {
	return &memberships.MembershipDTO{}, nil
}
func (stubAuthority) PermissionsFor(context.Context, uuid.UUID, uuid.UUID) (enums.PermissionSet, error) {
	return enums.NewPermissionSet(), nil
}
func (stubAuthority) RequirePermission(context.Context, uuid.UUID, uuid.UUID, enums.Permission) error {
	return nil
}
func (stubAuthority) UpdateMembership(context.Context, authz.Caller, uuid.UUID, uuid.UUID, memberships.UpdateMembershipInput) (*memberships.MembershipDTO, error) {
	return &memberships.MembershipDTO{}, nil
}
func (stubAuthority) Leave(context.Context, authz.Caller, uuid.UUID) error { return nil }
func (stubAuthority) ListMine(context.Context, authz.Caller) ([]memberships.MembershipWithGym, error) {
	return []memberships.MembershipWithGym{}, nil
}
func (stubAuthority) ListMembers(context.Context, authz.Caller, uuid.UUID) ([]memberships.GymMemberDTO, error) {
	return []memberships.GymMemberDTO{}, nil
}

type harness struct {
	handler http.Handler
	issuer  *pkgauth.Issuer
	auth    *stubServices
}

func newHarness(t *testing.T, grants map[uuid.UUID]enums.PermissionSet) *harness {
	t.Helper()
	jwtCfg := config.JWTConfig{
		Secret:                 "router-secret",
		Issuer:                 "boxlink-test",
		ExpirationMinutes:      10,
		RefreshTokenTTLMinutes: 60,
	}
	issuer, err := pkgauth.NewIssuer(jwtCfg)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	reg := prometheus.NewRegistry()
	gate, err := authz.NewGate(issuer, stubPermissions{grants: grants}, metrics.NewAuthMetrics(reg))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	svc := &stubServices{}
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSAllowedOrigins: []string{"http://localhost:3000"}},
		JWT: jwtCfg,
	}
	handler := NewRouter(Dependencies{
		Config:      cfg,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:          okPinger{},
		Redis:       newMemoryRedis(),
		Gate:        gate,
		Auth:        svc,
		Gyms:        stubGyms{},
		Memberships: stubAuthority{},
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &harness{handler: handler, issuer: issuer, auth: svc}
}

func (h *harness) token(t *testing.T, userID uuid.UUID, role enums.GlobalRole) string {
	t.Helper()
	token, _, err := h.issuer.Issue(time.Now(), pkgauth.TokenPayload{UserID: userID, Role: role, Kind: enums.TokenKindAccess})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (h *harness) do(method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t, nil)
	if rec := h.do(http.MethodGet, "/health/live", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/health/ready", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", rec.Code)
	}
}

func TestMeRequiresAccessToken(t *testing.T) {
	h := newHarness(t, nil)
	if rec := h.do(http.MethodGet, "/api/v1/me", "", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	userID := uuid.New()
	rec := h.do(http.MethodGet, "/api/v1/me", h.token(t, userID, enums.GlobalRoleUser), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), userID.String()) {
		t.Fatalf("expected caller id in body, got %s", rec.Body.String())
	}
}

func TestRegisterRequiresIdempotencyKeyAndReplays(t *testing.T) {
	h := newHarness(t, nil)
	body := `{"first_name":"Ana","last_name":"Diaz","email":"ana@example.com","password":"long-enough"}`

	if rec := h.do(http.MethodPost, "/api/v1/auth/register", "", body, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key got %d", rec.Code)
	}

	headers := map[string]string{"Idempotency-Key": "register-1"}
	first := h.do(http.MethodPost, "/api/v1/auth/register", "", body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	second := h.do(http.MethodPost, "/api/v1/auth/register", "", body, headers)
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replayed response, got %d %s", second.Code, second.Body.String())
	}
	if h.auth.registered != 1 {
		t.Fatalf("expected one registration, got %d", h.auth.registered)
	}
}

func TestCreateGymRequiresIdempotencyKey(t *testing.T) {
	h := newHarness(t, nil)
	token := h.token(t, uuid.New(), enums.GlobalRoleUser)
	body := `{"name":"Iron Temple"}`

	if rec := h.do(http.MethodPost, "/api/v1/gyms", token, body, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key got %d", rec.Code)
	}
	rec := h.do(http.MethodPost, "/api/v1/gyms", token, body, map[string]string{"Idempotency-Key": "gym-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGymSettingsRequireManageSettings(t *testing.T) {
	owner, athlete := uuid.New(), uuid.New()
	h := newHarness(t, map[uuid.UUID]enums.PermissionSet{
		owner: enums.NewPermissionSet(enums.AllPermissions()...),
	})
	path := "/api/v1/gyms/" + uuid.NewString() + "/settings"

	if rec := h.do(http.MethodGet, path, h.token(t, athlete, enums.GlobalRoleUser), "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, path, h.token(t, owner, enums.GlobalRoleUser), "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := h.do(http.MethodGet, "/api/v1/gyms/nope/settings", h.token(t, owner, enums.GlobalRoleUser), "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed gym id got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t, nil)
	if rec := h.do(http.MethodGet, "/api/admin/v1/gyms/pending", h.token(t, uuid.New(), enums.GlobalRoleUser), "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/admin/v1/gyms/pending", h.token(t, uuid.New(), enums.GlobalRoleAdmin), "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestMetricsExposeGateDecisions(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/api/v1/me", "", "", nil)

	rec := h.do(http.MethodGet, "/metrics", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authz_decisions_total") {
		t.Fatalf("expected gate counter in metrics output")
	}
}
