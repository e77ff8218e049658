package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/internal/auth"
	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/gyms"
	"github.com/angelmondragon/boxlink-backend/internal/memberships"
	"github.com/angelmondragon/boxlink-backend/internal/users"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withCaller(req *http.Request, caller authz.Caller) *http.Request {
	return req.WithContext(authz.WithCaller(req.Context(), caller))
}

func userCaller() authz.Caller {
	return authz.Caller{UserID: uuid.New(), Role: enums.GlobalRoleUser}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type stubAuthService struct {
	user        *users.UserDTO
	login       *auth.LoginResponse
	pair        *auth.TokenPair
	err         error
	gotRegister auth.RegisterRequest
	gotToken    string
	gotCaller   authz.Caller
	gotPassword auth.ChangePasswordRequest
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	s.gotRegister = req
	return s.user, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.login, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	s.gotToken = refreshToken
	return s.pair, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, refreshToken string) error {
	s.gotToken = refreshToken
	return s.err
}

func (s *stubAuthService) ChangePassword(ctx context.Context, caller authz.Caller, req auth.ChangePasswordRequest) error {
	s.gotCaller = caller
	s.gotPassword = req
	return s.err
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, caller authz.Caller, req auth.UpdateProfileRequest) (*users.UserDTO, error) {
	s.gotCaller = caller
	return s.user, s.err
}

func (s *stubAuthService) UpdatePreferences(ctx context.Context, caller authz.Caller, req auth.UpdatePreferencesRequest) (*users.UserDTO, error) {
	s.gotCaller = caller
	return s.user, s.err
}

func (s *stubAuthService) Me(ctx context.Context, caller authz.Caller) (*users.UserDTO, error) {
	s.gotCaller = caller
	return s.user, s.err
}

type stubAuthority struct {
	membership *memberships.MembershipDTO
	perms      enums.PermissionSet
	err        error
	gotGymID   uuid.UUID
	gotUserID  uuid.UUID
	gotCode    string
	gotUpdate  memberships.UpdateMembershipInput
}

func (s *stubAuthority) Join(ctx context.Context, caller authz.Caller, gymID uuid.UUID, code string) (*memberships.MembershipDTO, error) {
	s.gotGymID = gymID
	s.gotCode = code
	return s.membership, s.err
}

func (s *stubAuthority) PermissionsFor(ctx context.Context, userID, gymID uuid.UUID) (enums.PermissionSet, error) {
	s.gotUserID = userID
	s.gotGymID = gymID
	return s.perms, s.err
}

func (s *stubAuthority) RequirePermission(ctx context.Context, userID, gymID uuid.UUID, perm enums.Permission) error {
	return s.err
}

func (s *stubAuthority) UpdateMembership(ctx context.Context, caller authz.Caller, gymID, targetUserID uuid.UUID, input memberships.UpdateMembershipInput) (*memberships.MembershipDTO, error) {
	s.gotGymID = gymID
	s.gotUserID = targetUserID
	s.gotUpdate = input
	return s.membership, s.err
}

func (s *stubAuthority) Leave(ctx context.Context, caller authz.Caller, gymID uuid.UUID) error {
	s.gotGymID = gymID
	return s.err
}

func (s *stubAuthority) ListMine(ctx context.Context, caller authz.Caller) ([]memberships.MembershipWithGym, error) {
	return nil, s.err
}

func (s *stubAuthority) ListMembers(ctx context.Context, caller authz.Caller, gymID uuid.UUID) ([]memberships.GymMemberDTO, error) {
	return nil, s.err
}

type stubGymService struct {
	settings  *gyms.GymSettingsDTO
	gym       *gyms.GymDTO
	review    *gyms.ReviewDTO
	err       error
	gotCreate gyms.CreateGymInput
	gotUpdate gyms.SettingsUpdate
	gotName   string
	gotTarget enums.GymStatus
}

func (s *stubGymService) CreateGym(ctx context.Context, caller authz.Caller, input gyms.CreateGymInput) (*gyms.GymSettingsDTO, error) {
	s.gotCreate = input
	return s.settings, s.err
}

func (s *stubGymService) UpdateGymSettings(ctx context.Context, caller authz.Caller, gymID uuid.UUID, input gyms.SettingsUpdate) (*gyms.GymSettingsDTO, error) {
	s.gotUpdate = input
	return s.settings, s.err
}

func (s *stubGymService) Get(ctx context.Context, gymID uuid.UUID) (*gyms.GymDTO, error) {
	return s.gym, s.err
}

func (s *stubGymService) GetByName(ctx context.Context, name string) (*gyms.GymDTO, error) {
	s.gotName = name
	return s.gym, s.err
}

func (s *stubGymService) GetSettings(ctx context.Context, caller authz.Caller, gymID uuid.UUID) (*gyms.GymSettingsDTO, error) {
	return s.settings, s.err
}

func (s *stubGymService) Transition(ctx context.Context, caller authz.Caller, gymID uuid.UUID, target enums.GymStatus) (*gyms.ReviewDTO, error) {
	s.gotTarget = target
	return s.review, s.err
}

func (s *stubGymService) ListPending(ctx context.Context, caller authz.Caller) ([]gyms.ReviewDTO, error) {
	return nil, s.err
}
