package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/boxlink-backend/api/controllers"
	"github.com/angelmondragon/boxlink-backend/api/middleware"
	"github.com/angelmondragon/boxlink-backend/internal/auth"
	"github.com/angelmondragon/boxlink-backend/internal/gyms"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/boxlink-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer depends on.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.AttemptCounter
	Ping(ctx context.Context) error
}

// Dependencies bundles everything NewRouter wires into handlers.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       RedisStore
	Gate        middleware.Authorizer
	Auth        auth.Service
	Gyms        gyms.Service
	Memberships memberships.Authority
	Metrics     http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	var (
		idempotencyStore pkgredis.IdempotencyStore
		rateStore        RedisStore
		redisPinger      controllers.Pinger
	)
	if deps.Redis != nil {
		idempotencyStore, rateStore, redisPinger = deps.Redis, deps.Redis, deps.Redis
	}
	idempotency := middleware.Idempotency(idempotencyStore, cfg.AuthRateLimit.TrustedProxyHops, logg)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	loginThrottle := middleware.ThrottleAuth(middleware.LoginThrottle(cfg.AuthRateLimit), rateStore, logg)
	registerThrottle := middleware.ThrottleAuth(middleware.RegisterThrottle(cfg.AuthRateLimit), rateStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginThrottle).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(registerThrottle, idempotency).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Gate, logg))
		r.Get("/", controllers.MeGet(deps.Auth, logg))
		r.Patch("/profile", controllers.MeUpdateProfile(deps.Auth, logg))
		r.Patch("/preferences", controllers.MeUpdatePreferences(deps.Auth, logg))
		r.Post("/password", controllers.MeChangePassword(deps.Auth, logg))
		r.Get("/memberships", controllers.MeMemberships(deps.Memberships, logg))
	})

	r.Route("/api/v1/gyms", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Gate, logg))
			r.With(idempotency).Post("/", controllers.GymCreate(deps.Gyms, logg))
			r.Get("/by-name/{name}", controllers.GymGetByName(deps.Gyms, logg))
			r.Get("/{gymId}", controllers.GymGet(deps.Gyms, logg))
			r.With(idempotency).Post("/{gymId}/join", controllers.GymJoin(deps.Memberships, logg))
			r.Delete("/{gymId}/membership", controllers.GymLeave(deps.Memberships, logg))
			r.Get("/{gymId}/permissions", controllers.GymPermissions(deps.Memberships, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireGymPermission(deps.Gate, enums.PermissionManageSettings, logg))
			r.Get("/{gymId}/settings", controllers.GymSettingsGet(deps.Gyms, logg))
			r.Patch("/{gymId}/settings", controllers.GymSettingsUpdate(deps.Gyms, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireGymPermission(deps.Gate, enums.PermissionManageMemberships, logg))
			r.Get("/{gymId}/members", controllers.GymMembers(deps.Memberships, logg))
			r.Patch("/{gymId}/members/{userId}", controllers.GymMemberUpdate(deps.Memberships, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireGlobalRole(deps.Gate, enums.GlobalRoleAdmin, logg))
		r.Get("/gyms/pending", controllers.AdminPendingGyms(deps.Gyms, logg))
		r.With(idempotency).Post("/gyms/{gymId}/status", controllers.AdminGymStatus(deps.Gyms, logg))
	})

	return r
}
