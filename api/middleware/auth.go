package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/api/responses"
	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
)

// GymIDParam is the chi URL parameter carrying the gym id.
const GymIDParam = "gymId"

// Authorizer runs one gate decision per request.
type Authorizer interface {
	Authorize(ctx context.Context, authorization string, req authz.Requirement) authz.Decision
}

type requirementFunc func(r *http.Request) (authz.Requirement, error)

// Authenticate validates the bearer access token and seeds the request context with the caller.
func Authenticate(gate Authorizer, logg *logger.Logger) func(http.Handler) http.Handler {
	return authorize(gate, logg, func(*http.Request) (authz.Requirement, error) {
		return authz.Requirement{}, nil
	})
}

// RequireGlobalRole authenticates the request and requires the platform role.
func RequireGlobalRole(gate Authorizer, role enums.GlobalRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return authorize(gate, logg, func(*http.Request) (authz.Requirement, error) {
		return authz.Requirement{Role: role}, nil
	})
}

// RequireGymPermission authenticates the request and requires perm in the gym named by the URL.
func RequireGymPermission(gate Authorizer, perm enums.Permission, logg *logger.Logger) func(http.Handler) http.Handler {
	return authorize(gate, logg, func(r *http.Request) (authz.Requirement, error) {
		gymID, err := uuid.Parse(chi.URLParam(r, GymIDParam))
		if err != nil {
			return authz.Requirement{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gym id")
		}
		return authz.Requirement{GymID: gymID, Permission: perm}, nil
	})
}

func authorize(gate Authorizer, logg *logger.Logger, requirement requirementFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if gate == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "authorization gate unavailable"))
				return
			}

			req, err := requirement(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			decision := gate.Authorize(ctx, r.Header.Get("Authorization"), req)
			if !decision.Allowed() {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"gate_state": string(decision.State),
						"status":     pkgerrors.HTTPStatus(decision.Err),
					})
					logg.Debug(logCtx, "authz.denied")
				}
				responses.WriteError(ctx, logg, w, decision.Err)
				return
			}

			ctx = authz.WithCaller(ctx, decision.Caller)
			if logg != nil {
				ctx = logg.WithCaller(ctx, decision.Caller.UserID.String(), string(decision.Caller.Role))
				if req.GymID != uuid.Nil {
					ctx = logg.WithGymID(ctx, req.GymID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFrom returns the caller placed on the request by the auth middleware.
func CallerFrom(r *http.Request) (authz.Caller, error) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok || !caller.Valid() {
		return authz.Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return caller, nil
}
