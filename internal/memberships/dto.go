package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

// MembershipDTO is the transport shape for a raw membership record.
type MembershipDTO struct {
	ID          uuid.UUID              `json:"id"`
	GymID       uuid.UUID              `json:"gym_id"`
	UserID      uuid.UUID              `json:"user_id"`
	Role        enums.GymRole          `json:"role"`
	Status      enums.MembershipStatus `json:"status"`
	Permissions []enums.Permission     `json:"permissions"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// MembershipWithGym includes basic gym metadata + membership info.
type MembershipWithGym struct {
	MembershipID uuid.UUID              `json:"membership_id"`
	GymID        uuid.UUID              `json:"gym_id"`
	UserID       uuid.UUID              `json:"user_id"`
	GymName      string                 `json:"gym_name"`
	GymStatus    enums.GymStatus        `json:"gym_status"`
	Role         enums.GymRole          `json:"role"`
	Status       enums.MembershipStatus `json:"status"`
	Permissions  []enums.Permission     `json:"permissions"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// GymMemberDTO mixes membership metadata with the associated user profile for gym admins.
type GymMemberDTO struct {
	MembershipID uuid.UUID              `json:"membership_id"`
	GymID        uuid.UUID              `json:"gym_id"`
	UserID       uuid.UUID              `json:"user_id"`
	Email        string                 `json:"email"`
	FirstName    string                 `json:"first_name"`
	LastName     string                 `json:"last_name"`
	Role         enums.GymRole          `json:"role"`
	Status       enums.MembershipStatus `json:"membership_status"`
	Permissions  []enums.Permission     `json:"permissions"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.GymMembership) *MembershipDTO {
	if m == nil {
		return nil
	}

	return &MembershipDTO{
		ID:          m.ID,
		GymID:       m.GymID,
		UserID:      m.UserID,
		Role:        m.Role,
		Status:      m.Status,
		Permissions: m.PermissionSet().Slice(),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
