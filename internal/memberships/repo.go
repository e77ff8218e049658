package memberships

import (
	"context"

	"github.com/angelmondragon/boxlink-backend/internal/repo"
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes membership persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create persists a new membership. The (user_id, gym_id) unique constraint rejects duplicates.
func (r *Repository) Create(ctx context.Context, m *models.GymMembership) error {
	return r.DB(ctx).Create(m).Error
}

// Find retrieves a membership by user and gym.
func (r *Repository) Find(ctx context.Context, userID, gymID uuid.UUID) (*models.GymMembership, error) {
	var membership models.GymMembership
	err := r.DB(ctx).
		Where("user_id = ? AND gym_id = ?", userID, gymID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListForUser returns the gyms a user belongs to along with membership metadata.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]MembershipWithGym, error) {
	var rows []membershipWithGymRow

	err := r.DB(ctx).
		Model(&models.GymMembership{}).
		Select("gym_memberships.*, gyms.name AS gym_name, gyms.status AS gym_status").
		Joins("JOIN gyms ON gyms.id = gym_memberships.gym_id").
		Where("gym_memberships.user_id = ?", userID).
		Order("gyms.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return membershipRowsToDTO(rows), nil
}

// ListForGym returns memberships for the gym along with user metadata.
func (r *Repository) ListForGym(ctx context.Context, gymID uuid.UUID) ([]GymMemberDTO, error) {
	var rows []gymMemberRow
	err := r.DB(ctx).
		Model(&models.GymMembership{}).
		Select("gym_memberships.*, users.email, users.first_name, users.last_name").
		Joins("JOIN users ON users.id = gym_memberships.user_id").
		Where("gym_memberships.gym_id = ?", gymID).
		Order("gym_memberships.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return gymMembersFromRows(rows), nil
}

// UpdateFields applies the column map in a single UPDATE scoped to the membership.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return repo.RequireRows(r.DB(ctx).
		Model(&models.GymMembership{}).
		Where("id = ?", id).
		Updates(fields))
}

// Delete removes the membership for the user in the gym.
func (r *Repository) Delete(ctx context.Context, userID, gymID uuid.UUID) error {
	return repo.RequireRows(r.DB(ctx).
		Where("user_id = ? AND gym_id = ?", userID, gymID).
		Delete(&models.GymMembership{}))
}

// CountWithRole counts memberships in the gym holding role with the given status.
func (r *Repository) CountWithRole(ctx context.Context, gymID uuid.UUID, role enums.GymRole, status enums.MembershipStatus) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.GymMembership{}).
		Where("gym_id = ? AND role = ? AND status = ?", gymID, role, status).
		Count(&count).Error
	return count, err
}
