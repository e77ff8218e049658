package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/boxlink-backend/api/middleware"
	"github.com/angelmondragon/boxlink-backend/api/responses"
	"github.com/angelmondragon/boxlink-backend/api/validators"
	"github.com/angelmondragon/boxlink-backend/internal/gyms"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
)

const maxGymNameParam = 120

type createGymRequest struct {
	Name             string  `json:"name" validate:"required,max=120"`
	Description      *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Programming      bool    `json:"programming"`
	AutoSubscription bool    `json:"auto_subscription"`
	EnrollmentCode   *string `json:"enrollment_code,omitempty" validate:"omitempty,min=4,max=32,alphanum"`
}

type updateGymSettingsRequest struct {
	Name                 *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Description          *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Programming          *bool   `json:"programming,omitempty"`
	AutoSubscription     *bool   `json:"auto_subscription,omitempty"`
	EnrollmentCode       *string `json:"enrollment_code,omitempty" validate:"omitempty,min=4,max=32,alphanum"`
	RotateEnrollmentCode bool    `json:"rotate_enrollment_code"`
}

type joinGymRequest struct {
	EnrollmentCode string `json:"enrollment_code" validate:"required,max=64"`
}

type updateMemberRequest struct {
	Role        *enums.GymRole          `json:"role,omitempty" validate:"omitempty,enum"`
	Status      *enums.MembershipStatus `json:"status,omitempty" validate:"omitempty,enum"`
	Permissions *[]enums.Permission     `json:"permissions,omitempty"`
}

type permissionsResponse struct {
	GymID       string             `json:"gym_id"`
	Permissions []enums.Permission `json:"permissions"`
}

// GymCreate registers a gym for review; the caller becomes its owner.
func GymCreate(svc gyms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := middleware.CallerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createGymRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gym, err := svc.CreateGym(r.Context(), caller, gyms.CreateGymInput{
			Name:             body.Name,
			Description:      body.Description,
			Programming:      body.Programming,
			AutoSubscription: body.AutoSubscription,
			EnrollmentCode:   body.EnrollmentCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, gym)
	}
}

// GymGet returns the public view of a gym.
func GymGet(svc gyms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gymID, err := validators.ParseUUIDParam(r, middleware.GymIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gym, err := svc.Get(r.Context(), gymID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, gym)
	}
}

// GymGetByName looks a gym up by its case-insensitive name.
func GymGetByName(svc gyms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := validators.SanitizeString(chi.URLParam(r, "name"), maxGymNameParam)
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "name is required"))
			return
		}

		gym, err := svc.GetByName(r.Context(), name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, gym)
	}
}

// GymJoin enrolls the caller with the gym's enrollment code.
func GymJoin(svc memberships.Authority, logg *logger.Logger) http.HandlerFunc {
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

		var body joinGymRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		membership, err := svc.Join(r.Context(), caller, gymID, strings.TrimSpace(body.EnrollmentCode))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, membership)
	}
}

// GymLeave removes the caller's own membership.
func GymLeave(svc memberships.Authority, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.Leave(r.Context(), caller, gymID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func GymSettingsGet(svc gyms.Service, logg *logger.Logger) http.HandlerFunc {
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

		settings, err := svc.GetSettings(r.Context(), caller, gymID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

func GymSettingsUpdate(svc gyms.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body updateGymSettingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settings, err := svc.UpdateGymSettings(r.Context(), caller, gymID, gyms.SettingsUpdate{
			Name:                 body.Name,
			Description:          body.Description,
			Programming:          body.Programming,
			AutoSubscription:     body.AutoSubscription,
			EnrollmentCode:       body.EnrollmentCode,
			RotateEnrollmentCode: body.RotateEnrollmentCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

// GymMembers lists the gym roster for membership managers.
func GymMembers(svc memberships.Authority, logg *logger.Logger) http.HandlerFunc {
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

		members, err := svc.ListMembers(r.Context(), caller, gymID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members)
	}
}

// GymMemberUpdate changes another member's role, status or grants.
func GymMemberUpdate(svc memberships.Authority, logg *logger.Logger) http.HandlerFunc {
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
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateMemberRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		membership, err := svc.UpdateMembership(r.Context(), caller, gymID, userID, memberships.UpdateMembershipInput{
			Role:        body.Role,
			Status:      body.Status,
			Permissions: body.Permissions,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, membership)
	}
}

// GymPermissions reports the caller's effective grants in the gym.
func GymPermissions(svc memberships.Authority, logg *logger.Logger) http.HandlerFunc {
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

		perms, err := svc.PermissionsFor(r.Context(), caller.UserID, gymID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, permissionsResponse{GymID: gymID.String(), Permissions: perms.Slice()})
	}
}
