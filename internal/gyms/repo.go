package gyms

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/boxlink-backend/internal/repo"
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// listColumns excludes enrollment_code so review listings never load it.
var listColumns = []string{
	"id", "name", "description", "programming", "auto_subscription", "status",
	"created_by_user_id", "reviewed_by_user_id", "reviewed_at", "created_at", "updated_at",
}

// Repository exposes gym persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// NormalizeName trims surrounding whitespace from a gym name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Create persists a new gym.
func (r *Repository) Create(ctx context.Context, gym *models.Gym) error {
	return r.DB(ctx).Create(gym).Error
}

// FindByID loads a gym by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Gym, error) {
	var gym models.Gym
	if err := r.DB(ctx).First(&gym, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gym, nil
}

// FindByName loads a gym by name, ignoring case.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Gym, error) {
	var gym models.Gym
	err := r.DB(ctx).
		Where("lower(name) = ?", strings.ToLower(NormalizeName(name))).
		First(&gym).Error
	if err != nil {
		return nil, err
	}
	return &gym, nil
}

// ExistsByName reports whether a gym already uses the name.
func (r *Repository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return repo.Exists(r.DB(ctx).
		Model(&models.Gym{}).
		Where("lower(name) = ?", strings.ToLower(NormalizeName(name))))
}

// UpdateFields applies the column map in a single UPDATE scoped to the gym.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return repo.RequireRows(r.DB(ctx).
		Model(&models.Gym{}).
		Where("id = ?", id).
		Updates(fields))
}

// TransitionStatus moves the gym from one status to another and records the reviewer.
// It matches on the current status so a concurrent transition leaves zero rows affected.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.GymStatus, reviewerID uuid.UUID, at time.Time) error {
	return repo.RequireRows(r.DB(ctx).
		Model(&models.Gym{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":              string(to),
			"reviewed_by_user_id": reviewerID,
			"reviewed_at":         at,
		}))
}

// ListByStatus returns gyms in the given status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status enums.GymStatus) ([]models.Gym, error) {
	var gyms []models.Gym
	err := r.DB(ctx).
		Select(listColumns).
		Where("status = ?", status).
		Order("created_at").
		Find(&gyms).Error
	if err != nil {
		return nil, err
	}
	return gyms, nil
}
