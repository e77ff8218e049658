package gyms

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

// GymDTO is the public view of a gym. It never carries the enrollment code.
type GymDTO struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	Programming      bool            `json:"programming"`
	AutoSubscription bool            `json:"auto_subscription"`
	Status           enums.GymStatus `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// GymSettingsDTO is the view handed to members holding MANAGE_SETTINGS.
type GymSettingsDTO struct {
	GymDTO
	EnrollmentCode   string     `json:"enrollment_code"`
	CreatedByUserID  uuid.UUID  `json:"created_by_user_id"`
	ReviewedByUserID *uuid.UUID `json:"reviewed_by_user_id,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ReviewDTO is the admin review-queue entry.
type ReviewDTO struct {
	GymDTO
	CreatedByUserID  uuid.UUID  `json:"created_by_user_id"`
	ReviewedByUserID *uuid.UUID `json:"reviewed_by_user_id,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
}

// CreateGymInput describes a new gym request.
type CreateGymInput struct {
	Name             string
	Description      *string
	Programming      bool
	AutoSubscription bool
	EnrollmentCode   *string
}

// FromModel maps a gym onto its public view.
func FromModel(g *models.Gym) GymDTO {
	return GymDTO{
		ID:               g.ID,
		Name:             g.Name,
		Description:      g.Description,
		Programming:      g.Programming,
		AutoSubscription: g.AutoSubscription,
		Status:           g.Status,
		CreatedAt:        g.CreatedAt,
	}
}

// SettingsFromModel maps a gym onto the settings view.
func SettingsFromModel(g *models.Gym) *GymSettingsDTO {
	return &GymSettingsDTO{
		GymDTO:           FromModel(g),
		EnrollmentCode:   g.EnrollmentCode,
		CreatedByUserID:  g.CreatedByUserID,
		ReviewedByUserID: g.ReviewedByUserID,
		ReviewedAt:       g.ReviewedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

func reviewFromModel(g *models.Gym) ReviewDTO {
	return ReviewDTO{
		GymDTO:           FromModel(g),
		CreatedByUserID:  g.CreatedByUserID,
		ReviewedByUserID: g.ReviewedByUserID,
		ReviewedAt:       g.ReviewedAt,
	}
}
