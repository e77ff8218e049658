package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

const DefaultLocale = "en"

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID        `json:"id"`
	Email       string           `json:"email"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	Role        enums.GlobalRole `json:"role"`
	Enabled     bool             `json:"enabled"`
	Locale      string           `json:"locale"`
	Theme       enums.Theme      `json:"theme"`
	LastLoginAt *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         enums.GlobalRole
	Locale       string
	Theme        enums.Theme
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Enabled:     u.Enabled,
		Locale:      u.Locale,
		Theme:       u.Theme,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// ToModel applies registration defaults: role USER, locale en, theme SYSTEM, enabled.
func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.GlobalRoleUser
	}
	locale := c.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	theme := c.Theme
	if theme == "" {
		theme = enums.ThemeSystem
	}

	return &models.User{
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Role:         role,
		Enabled:      true,
		Locale:       locale,
		Theme:        theme,
	}
}
