package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/pkg/db"
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	"github.com/angelmondragon/boxlink-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const uniqueMembershipConstraint = "gym_memberships_user_gym_key"

// uniqueMembershipColumns is how SQLite reports uniqueMembershipConstraint.
var uniqueMembershipColumns = []string{"gym_memberships.user_id", "gym_memberships.gym_id"}

type membershipStore interface {
	Create(ctx context.Context, m *models.GymMembership) error
	Find(ctx context.Context, userID, gymID uuid.UUID) (*models.GymMembership, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]MembershipWithGym, error)
	ListForGym(ctx context.Context, gymID uuid.UUID) ([]GymMemberDTO, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, userID, gymID uuid.UUID) error
	CountWithRole(ctx context.Context, gymID uuid.UUID, role enums.GymRole, status enums.MembershipStatus) (int64, error)
}

type gymLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Gym, error)
}

// Authority resolves and mutates a user's standing within a gym.
type Authority interface {
	Join(ctx context.Context, caller authz.Caller, gymID uuid.UUID, enrollmentCode string) (*MembershipDTO, error)
	PermissionsFor(ctx context.Context, userID, gymID uuid.UUID) (enums.PermissionSet, error)
	RequirePermission(ctx context.Context, userID, gymID uuid.UUID, perm enums.Permission) error
	UpdateMembership(ctx context.Context, caller authz.Caller, gymID, targetUserID uuid.UUID, input UpdateMembershipInput) (*MembershipDTO, error)
	Leave(ctx context.Context, caller authz.Caller, gymID uuid.UUID) error
	ListMine(ctx context.Context, caller authz.Caller) ([]MembershipWithGym, error)
	ListMembers(ctx context.Context, caller authz.Caller, gymID uuid.UUID) ([]GymMemberDTO, error)
}

// AuthorityParams packages the dependencies for the membership authority.
type AuthorityParams struct {
	Memberships membershipStore
	Gyms        gymLookup
	Logger      *logger.Logger
}

type authority struct {
	memberships membershipStore
	gyms        gymLookup
	logg        *logger.Logger
}

// NewAuthority builds the membership authority.
func NewAuthority(params AuthorityParams) (Authority, error) {
	if params.Memberships == nil {
		return nil, fmt.Errorf("memberships repository required")
	}
	if params.Gyms == nil {
		return nil, fmt.Errorf("gyms repository required")
	}
	return &authority{
		memberships: params.Memberships,
		gyms:        params.Gyms,
		logg:        params.Logger,
	}, nil
}

// UpdateMembershipInput carries the optional changes a gym admin may apply.
type UpdateMembershipInput struct {
	Role        *enums.GymRole
	Status      *enums.MembershipStatus
	Permissions *[]enums.Permission
}

func (a *authority) Join(ctx context.Context, caller authz.Caller, gymID uuid.UUID, enrollmentCode string) (*MembershipDTO, error) {
	if !caller.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	gym, err := a.gyms.FindByID(ctx, gymID)
	if err != nil {
		return nil, storeError(err, "gym not found", "load gym")
	}
	if gym.Status != enums.GymStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "gym is not accepting members").
			WithDetails(map[string]any{"status": gym.Status})
	}
	if !security.CodesEqual(gym.EnrollmentCode, enrollmentCode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid enrollment code")
	}

	existing, err := a.memberships.Find(ctx, caller.UserID, gymID)
	switch {
	case err == nil && existing.Status == enums.MembershipStatusBanned:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "membership is banned")
	case err == nil:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already a member of this gym")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}

	status := enums.MembershipStatusPending
	if gym.AutoSubscription {
		status = enums.MembershipStatusActive
	}

	membership := &models.GymMembership{
		GymID:       gymID,
		UserID:      caller.UserID,
		Role:        enums.GymRoleAthlete,
		Status:      status,
		Permissions: pq.StringArray{},
	}
	if err := a.memberships.Create(ctx, membership); err != nil {
		if db.IsUniqueViolation(err, uniqueMembershipConstraint, uniqueMembershipColumns...) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "already a member of this gym")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
	}

	if a.logg != nil {
		logCtx := a.logg.WithGymID(ctx, gymID.String())
		logCtx = a.logg.WithField(logCtx, "membership_status", string(status))
		a.logg.Info(logCtx, "gym joined")
	}
	return ToDTO(membership), nil
}

func (a *authority) PermissionsFor(ctx context.Context, userID, gymID uuid.UUID) (enums.PermissionSet, error) {
	membership, err := a.memberships.Find(ctx, userID, gymID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enums.NewPermissionSet(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if membership.Status != enums.MembershipStatusActive {
		return enums.NewPermissionSet(), nil
	}
	return membership.PermissionSet(), nil
}

func (a *authority) RequirePermission(ctx context.Context, userID, gymID uuid.UUID, perm enums.Permission) error {
	if !perm.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "unknown permission %q", perm)
	}

	perms, err := a.PermissionsFor(ctx, userID, gymID)
	if err != nil {
		return err
	}
	if !perms.Has(perm) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient gym permissions").
			WithDetails(map[string]any{"required": perm})
	}

	gym, err := a.gyms.FindByID(ctx, gymID)
	if err != nil {
		return storeError(err, "gym not found", "load gym")
	}
	if gym.Status != enums.GymStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "gym is not active").
			WithDetails(map[string]any{"status": gym.Status})
	}
	return nil
}

func (a *authority) UpdateMembership(ctx context.Context, caller authz.Caller, gymID, targetUserID uuid.UUID, input UpdateMembershipInput) (*MembershipDTO, error) {
	if err := a.RequirePermission(ctx, caller.UserID, gymID, enums.PermissionManageMemberships); err != nil {
		return nil, err
	}

	target, err := a.memberships.Find(ctx, targetUserID, gymID)
	if err != nil {
		return nil, storeError(err, "membership not found", "load membership")
	}

	role := target.Role
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gym role")
		}
		role = *input.Role
	}
	status := target.Status
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid membership status")
		}
		status = *input.Status
	}

	touchesOwner := target.Role == enums.GymRoleOwner || role == enums.GymRoleOwner
	if touchesOwner {
		callerMembership, err := a.memberships.Find(ctx, caller.UserID, gymID)
		if err != nil {
			return nil, storeError(err, "membership not found", "load caller membership")
		}
		if callerMembership.Role != enums.GymRoleOwner {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only owners can manage owner memberships")
		}
	}

	eligible := role.EligiblePermissions()
	perms := target.PermissionSet().Intersect(eligible)
	if input.Permissions != nil {
		requested := enums.NewPermissionSet(*input.Permissions...)
		for p := range requested {
			if !p.IsValid() {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown permission %q", p)
			}
		}
		if !requested.SubsetOf(eligible) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "permissions not eligible for role").
				WithDetails(map[string]any{"role": role, "eligible": eligible.Slice()})
		}
		perms = requested
	}

	demotesOwner := target.Role == enums.GymRoleOwner &&
		target.Status == enums.MembershipStatusActive &&
		(role != enums.GymRoleOwner || status != enums.MembershipStatusActive)
	if demotesOwner {
		if err := a.ensureAnotherOwner(ctx, gymID); err != nil {
			return nil, err
		}
	}

	fields := map[string]any{
		"role":        string(role),
		"status":      string(status),
		"permissions": pq.StringArray(perms.Strings()),
	}
	if err := a.memberships.UpdateFields(ctx, target.ID, fields); err != nil {
		return nil, storeError(err, "membership not found", "update membership")
	}

	target.Role = role
	target.Status = status
	target.Permissions = pq.StringArray(perms.Strings())

	if a.logg != nil {
		logCtx := a.logg.WithGymID(ctx, gymID.String())
		logCtx = a.logg.WithFields(logCtx, map[string]any{
			"target_user_id": targetUserID.String(),
			"role":           string(role),
			"status":         string(status),
		})
		a.logg.Info(logCtx, "membership updated")
	}
	return ToDTO(target), nil
}

func (a *authority) Leave(ctx context.Context, caller authz.Caller, gymID uuid.UUID) error {
	membership, err := a.memberships.Find(ctx, caller.UserID, gymID)
	if err != nil {
		return storeError(err, "membership not found", "load membership")
	}
	if membership.Role == enums.GymRoleOwner && membership.Status == enums.MembershipStatusActive {
		if err := a.ensureAnotherOwner(ctx, gymID); err != nil {
			return err
		}
	}
	if err := a.memberships.Delete(ctx, caller.UserID, gymID); err != nil {
		return storeError(err, "membership not found", "delete membership")
	}
	return nil
}

func (a *authority) ListMine(ctx context.Context, caller authz.Caller) ([]MembershipWithGym, error) {
	list, err := a.memberships.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	return list, nil
}

func (a *authority) ListMembers(ctx context.Context, caller authz.Caller, gymID uuid.UUID) ([]GymMemberDTO, error) {
	if err := a.RequirePermission(ctx, caller.UserID, gymID, enums.PermissionManageMemberships); err != nil {
		return nil, err
	}
	list, err := a.memberships.ListForGym(ctx, gymID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gym members")
	}
	return list, nil
}

func (a *authority) ensureAnotherOwner(ctx context.Context, gymID uuid.UUID) error {
	owners, err := a.memberships.CountWithRole(ctx, gymID, enums.GymRoleOwner, enums.MembershipStatusActive)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owners")
	}
	if owners <= 1 {
		return pkgerrors.New(pkgerrors.CodeConflict, "cannot remove last owner")
	}
	return nil
}

func storeError(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
