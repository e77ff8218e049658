package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/users"
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/types"
	"gorm.io/gorm"
)

func (s *service) ChangePassword(ctx context.Context, caller authz.Caller, req ChangePasswordRequest) error {
	user, err := s.loadCaller(ctx, caller)
	if err != nil {
		return err
	}

	valid, err := s.matches(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeValidation, "current password is incorrect")
	}
	if req.NewPassword != req.PasswordConfirmation {
		return pkgerrors.New(pkgerrors.CodeValidation, "password confirmation does not match")
	}
	if err := checkPasswordPolicy(req.NewPassword); err != nil {
		return err
	}

	hash, err := s.hash(req.NewPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}

	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, user.ID.String())
		s.logg.Info(logCtx, "password changed")
	}
	return nil
}

func (s *service) UpdateProfile(ctx context.Context, caller authz.Caller, req UpdateProfileRequest) (*users.UserDTO, error) {
	update := users.ProfileUpdate{}
	if req.FirstName != nil {
		v := strings.TrimSpace(*req.FirstName)
		if v == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "first name cannot be empty")
		}
		update.FirstName = &v
	}
	if req.LastName != nil {
		v := strings.TrimSpace(*req.LastName)
		if v == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "last name cannot be empty")
		}
		update.LastName = &v
	}
	return s.applyFields(ctx, caller, types.Columns(users.ProfileFields, update))
}

func (s *service) UpdatePreferences(ctx context.Context, caller authz.Caller, req UpdatePreferencesRequest) (*users.UserDTO, error) {
	update := users.PreferenceUpdate{Theme: req.Theme}
	if req.Theme != nil && !req.Theme.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid theme")
	}
	if req.Locale != nil {
		v := strings.TrimSpace(*req.Locale)
		if v == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "locale cannot be empty")
		}
		update.Locale = &v
	}
	return s.applyFields(ctx, caller, types.Columns(users.PreferenceFields, update))
}

func (s *service) Me(ctx context.Context, caller authz.Caller) (*users.UserDTO, error) {
	user, err := s.loadCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}

// applyFields writes every column in one UPDATE, then returns the fresh row.
func (s *service) applyFields(ctx context.Context, caller authz.Caller, fields map[string]any) (*users.UserDTO, error) {
	if !caller.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if err := s.users.UpdateFields(ctx, caller.UserID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return s.Me(ctx, caller)
}

func (s *service) loadCaller(ctx context.Context, caller authz.Caller) (*models.User, error) {
	if !caller.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
