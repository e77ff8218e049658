package controllers

import (
	"net/http"

	"github.com/angelmondragon/boxlink-backend/api/middleware"
	"github.com/angelmondragon/boxlink-backend/api/responses"
	"github.com/angelmondragon/boxlink-backend/api/validators"
	"github.com/angelmondragon/boxlink-backend/internal/gyms"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
)

type gymStatusRequest struct {
	Status enums.GymStatus `json:"status" validate:"required,enum"`
}

// AdminPendingGyms returns the review queue.
func AdminPendingGyms(svc gyms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := middleware.CallerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pending, err := svc.ListPending(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pending)
	}
}

// AdminGymStatus moves a gym through its approval lifecycle.
func AdminGymStatus(svc gyms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := middleware.CallerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gymID, err := validators.ParseUUIDParam(r, middleware.GymIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body gymStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Transition(r.Context(), caller, gymID, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, review)
	}
}
