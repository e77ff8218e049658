package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/boxlink-backend/api/routes"
	"github.com/angelmondragon/boxlink-backend/internal/auth"
	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/gyms"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/internal/users"
	pkgauth "github.com/angelmondragon/boxlink-backend/pkg/auth"
	"github.com/angelmondragon/boxlink-backend/pkg/auth/session"
	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/db"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	"github.com/angelmondragon/boxlink-backend/pkg/metrics"
	"github.com/angelmondragon/boxlink-backend/pkg/migrate"
	"github.com/angelmondragon/boxlink-backend/pkg/redis"
	"github.com/angelmondragon/boxlink-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.NewAuthMetrics(registry)

	issuer, err := pkgauth.NewIssuer(cfg.JWT)
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(redisClient)
	if err != nil {
		return err
	}

	userRepo := users.NewRepository(dbClient.DB())
	gymRepo := gyms.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())

	authority, err := memberships.NewAuthority(memberships.AuthorityParams{
		Memberships: membershipRepo,
		Gyms:        gymRepo,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	gymService, err := gyms.NewService(gyms.ServiceParams{
		Tx:          dbClient,
		Repo:        gymRepo,
		Permissions: authority,
		Config:      cfg.Gyms,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Users:       userRepo,
		Memberships: membershipRepo,
		Tokens:      issuer,
		Sessions:    sessions,
		Hasher:      security.NewHasher(cfg.Password),
		Metrics:     authMetrics,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	gate, err := authz.NewGate(issuer, authority, authMetrics)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Gate:        gate,
			Auth:        authService,
			Gyms:        gymService,
			Memberships: authority,
			Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
