package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

// Gym represents the tenant record.
type Gym struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name             string          `gorm:"column:name;not null"`
	Description      *string         `gorm:"column:description"`
	Programming      bool            `gorm:"column:programming;not null;default:false"`
	AutoSubscription bool            `gorm:"column:auto_subscription;not null;default:false"`
	EnrollmentCode   string          `gorm:"column:enrollment_code;not null"`
	Status           enums.GymStatus `gorm:"column:status;type:text;not null;default:'PENDING_APPROVAL'"`
	CreatedByUserID  uuid.UUID       `gorm:"column:created_by_user_id;type:uuid;not null"`
	ReviewedByUserID *uuid.UUID      `gorm:"column:reviewed_by_user_id;type:uuid"`
	ReviewedAt       *time.Time      `gorm:"column:reviewed_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller left it empty.
func (g *Gym) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
