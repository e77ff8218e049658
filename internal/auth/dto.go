package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/internal/users"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

// RegisterRequest contains the payload required to open an account.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token being exchanged or revoked.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest carries the current password and the confirmed replacement.
type ChangePasswordRequest struct {
	CurrentPassword      string `json:"current_password" validate:"required"`
	NewPassword          string `json:"new_password" validate:"required,min=8,max=128"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

// UpdateProfileRequest is a partial profile update.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=100"`
}

// UpdatePreferencesRequest is a partial preferences update.
type UpdatePreferencesRequest struct {
	Locale *string      `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
	Theme  *enums.Theme `json:"theme,omitempty" validate:"omitempty,enum"`
}

// GymSummary describes a gym the user belongs to.
type GymSummary struct {
	ID               uuid.UUID              `json:"id"`
	Name             string                 `json:"name"`
	Status           enums.GymStatus        `json:"status"`
	Role             enums.GymRole          `json:"role"`
	MembershipStatus enums.MembershipStatus `json:"membership_status"`
	Permissions      []enums.Permission     `json:"permissions"`
}

// TokenPair is the access/refresh pair issued on login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResponse contains the tokens, user, and gym list produced by a successful login.
type LoginResponse struct {
	TokenPair
	User *users.UserDTO `json:"user"`
	Gyms []GymSummary   `json:"gyms"`
}
