package gyms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/db"
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	"github.com/angelmondragon/boxlink-backend/pkg/security"
	"github.com/angelmondragon/boxlink-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	uniqueNameConstraint = "gyms_name_key"
	maxNameLength        = 120
	minCodeLength        = 4
	maxCodeLength        = 32
)

type gymRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Gym, error)
	FindByName(ctx context.Context, name string) (*models.Gym, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.GymStatus, reviewerID uuid.UUID, at time.Time) error
	ListByStatus(ctx context.Context, status enums.GymStatus) ([]models.Gym, error)
}

type permissionChecker interface {
	RequirePermission(ctx context.Context, userID, gymID uuid.UUID, perm enums.Permission) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes gym lifecycle and settings operations.
type Service interface {
	CreateGym(ctx context.Context, caller authz.Caller, input CreateGymInput) (*GymSettingsDTO, error)
	UpdateGymSettings(ctx context.Context, caller authz.Caller, gymID uuid.UUID, input SettingsUpdate) (*GymSettingsDTO, error)
	Get(ctx context.Context, gymID uuid.UUID) (*GymDTO, error)
	GetByName(ctx context.Context, name string) (*GymDTO, error)
	GetSettings(ctx context.Context, caller authz.Caller, gymID uuid.UUID) (*GymSettingsDTO, error)
	Transition(ctx context.Context, caller authz.Caller, gymID uuid.UUID, target enums.GymStatus) (*ReviewDTO, error)
	ListPending(ctx context.Context, caller authz.Caller) ([]ReviewDTO, error)
}

// ServiceParams packages the dependencies for the gym service.
type ServiceParams struct {
	Tx          txRunner
	Repo        gymRepository
	Permissions permissionChecker
	Config      config.GymsConfig
	Logger      *logger.Logger
	Clock       func() time.Time
}

type service struct {
	tx    txRunner
	repo  gymRepository
	perms permissionChecker
	cfg   config.GymsConfig
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the gym service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("gym repository required")
	}
	if params.Permissions == nil {
		return nil, fmt.Errorf("permission checker required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		tx:    params.Tx,
		repo:  params.Repo,
		perms: params.Permissions,
		cfg:   params.Config,
		logg:  params.Logger,
		now:   clock,
	}, nil
}

func (s *service) CreateGym(ctx context.Context, caller authz.Caller, input CreateGymInput) (*GymSettingsDTO, error) {
	if !caller.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}

	code, err := s.resolveCode(input.EnrollmentCode)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check gym name")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "gym name already taken")
	}

	gym := &models.Gym{
		Name:             name,
		Description:      input.Description,
		Programming:      input.Programming,
		AutoSubscription: input.AutoSubscription,
		EnrollmentCode:   code,
		Status:           enums.GymStatusPendingApproval,
		CreatedByUserID:  caller.UserID,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).Create(ctx, gym); err != nil {
			return err
		}
		return memberships.NewRepository(tx).Create(ctx, &models.GymMembership{
			GymID:       gym.ID,
			UserID:      caller.UserID,
			Role:        enums.GymRoleOwner,
			Status:      enums.MembershipStatusActive,
			Permissions: pq.StringArray(enums.NewPermissionSet(enums.AllPermissions()...).Strings()),
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniqueNameConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "gym name already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gym")
	}

	if s.logg != nil {
		logCtx := s.logg.WithGymID(ctx, gym.ID.String())
		s.logg.Info(logCtx, "gym created")
	}
	return SettingsFromModel(gym), nil
}

func (s *service) UpdateGymSettings(ctx context.Context, caller authz.Caller, gymID uuid.UUID, input SettingsUpdate) (*GymSettingsDTO, error) {
	if err := s.perms.RequirePermission(ctx, caller.UserID, gymID, enums.PermissionManageSettings); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		existing, err := s.repo.FindByName(ctx, name)
		switch {
		case err == nil && existing.ID != gymID:
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "gym name already taken")
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check gym name")
		}
		input.Name = &name
	}

	if input.RotateEnrollmentCode {
		code, err := security.GenerateEnrollmentCode(s.cfg.EnrollmentCodeLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate enrollment code")
		}
		input.EnrollmentCode = &code
	} else if input.EnrollmentCode != nil {
		code, err := normalizeCode(*input.EnrollmentCode)
		if err != nil {
			return nil, err
		}
		input.EnrollmentCode = &code
	}

	fields := types.Columns(SettingsFields, input)
	if err := s.repo.UpdateFields(ctx, gymID, fields); err != nil {
		if db.IsUniqueViolation(err, uniqueNameConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "gym name already taken")
		}
		return nil, storeError(err, "update gym")
	}

	gym, err := s.repo.FindByID(ctx, gymID)
	if err != nil {
		return nil, storeError(err, "load gym")
	}
	return SettingsFromModel(gym), nil
}

func (s *service) Get(ctx context.Context, gymID uuid.UUID) (*GymDTO, error) {
	gym, err := s.repo.FindByID(ctx, gymID)
	if err != nil {
		return nil, storeError(err, "load gym")
	}
	dto := FromModel(gym)
	return &dto, nil
}

func (s *service) GetByName(ctx context.Context, name string) (*GymDTO, error) {
	if NormalizeName(name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gym name is required")
	}
	gym, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, storeError(err, "load gym")
	}
	dto := FromModel(gym)
	return &dto, nil
}

func (s *service) GetSettings(ctx context.Context, caller authz.Caller, gymID uuid.UUID) (*GymSettingsDTO, error) {
	if err := s.perms.RequirePermission(ctx, caller.UserID, gymID, enums.PermissionManageSettings); err != nil {
		return nil, err
	}
	gym, err := s.repo.FindByID(ctx, gymID)
	if err != nil {
		return nil, storeError(err, "load gym")
	}
	return SettingsFromModel(gym), nil
}

func (s *service) Transition(ctx context.Context, caller authz.Caller, gymID uuid.UUID, target enums.GymStatus) (*ReviewDTO, error) {
	if !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gym status")
	}

	gym, err := s.repo.FindByID(ctx, gymID)
	if err != nil {
		return nil, storeError(err, "load gym")
	}
	if !gym.Status.CanTransition(target) {
		return nil, transitionConflict(gym.Status, target)
	}

	at := s.now().UTC()
	if err := s.repo.TransitionStatus(ctx, gymID, gym.Status, target, caller.UserID, at); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "gym status changed concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition gym")
	}

	from := gym.Status
	gym.Status = target
	gym.ReviewedByUserID = &caller.UserID
	gym.ReviewedAt = &at

	if s.logg != nil {
		logCtx := s.logg.WithGymID(ctx, gymID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"from_status": string(from),
			"to_status":   string(target),
		})
		s.logg.Info(logCtx, "gym status changed")
	}

	dto := reviewFromModel(gym)
	return &dto, nil
}

func (s *service) ListPending(ctx context.Context, caller authz.Caller) ([]ReviewDTO, error) {
	if !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	list, err := s.repo.ListByStatus(ctx, enums.GymStatusPendingApproval)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending gyms")
	}
	out := make([]ReviewDTO, 0, len(list))
	for i := range list {
		out = append(out, reviewFromModel(&list[i]))
	}
	return out, nil
}

func (s *service) resolveCode(supplied *string) (string, error) {
	if supplied != nil && strings.TrimSpace(*supplied) != "" {
		return normalizeCode(*supplied)
	}
	code, err := security.GenerateEnrollmentCode(s.cfg.EnrollmentCodeLength)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate enrollment code")
	}
	return code, nil
}

func validateName(raw string) (string, error) {
	name := NormalizeName(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "gym name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "gym name must be at most %d characters", maxNameLength)
	}
	return name, nil
}

func normalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) < minCodeLength || len(code) > maxCodeLength {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "enrollment code must be %d to %d characters", minCodeLength, maxCodeLength)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "enrollment code must be alphanumeric")
		}
	}
	return code, nil
}

func transitionConflict(from, to enums.GymStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move gym from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}

func storeError(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "gym not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
