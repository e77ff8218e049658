package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

// GymMembership links a user with a gym and captures their role, status and grants.
type GymMembership struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	GymID       uuid.UUID              `gorm:"column:gym_id;type:uuid;not null"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	Role        enums.GymRole          `gorm:"column:role;type:text;not null"`
	Status      enums.MembershipStatus `gorm:"column:status;type:text;not null"`
	Permissions pq.StringArray         `gorm:"column:permissions;type:text[];not null"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller left it empty.
func (m *GymMembership) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Permissions == nil {
		m.Permissions = pq.StringArray{}
	}
	return nil
}

// PermissionSet returns the stored grants, skipping unknown values.
func (m GymMembership) PermissionSet() enums.PermissionSet {
	set := make(enums.PermissionSet, len(m.Permissions))
	for _, raw := range m.Permissions {
		p := enums.Permission(raw)
		if p.IsValid() {
			set[p] = struct{}{}
		}
	}
	return set
}
