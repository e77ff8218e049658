package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/internal/auth"
	"github.com/angelmondragon/boxlink-backend/internal/users"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/types"
)

func TestAuthRegisterCreatesUser(t *testing.T) {
	svc := &stubAuthService{user: &users.UserDTO{ID: uuid.New(), Email: "ana@example.com", Role: enums.GlobalRoleUser}}
	handler := AuthRegister(svc, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"first_name":"Ana","last_name":"Diaz","email":"ana@example.com","password":"long-enough"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotRegister.Email != "ana@example.com" || svc.gotRegister.FirstName != "Ana" {
		t.Fatalf("unexpected request forwarded %+v", svc.gotRegister)
	}
	var envelope struct {
		Data users.UserDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Email != "ana@example.com" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestAuthRegisterRejectsShortPassword(t *testing.T) {
	svc := &stubAuthService{}
	rec := httptest.NewRecorder()
	AuthRegister(svc, testLogger()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"first_name":"Ana","last_name":"Diaz","email":"ana@example.com","password":"short"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.gotRegister.Email != "" {
		t.Fatal("service should not be called on invalid input")
	}
}

func TestAuthLoginMapsInvalidCredentials(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	rec := httptest.NewRecorder()
	AuthLogin(svc, testLogger()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/login",
		`{"email":"ana@example.com","password":"whatever"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message != "invalid credentials" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestAuthLoginReturnsTokens(t *testing.T) {
	svc := &stubAuthService{login: &auth.LoginResponse{
		TokenPair: auth.TokenPair{AccessToken: "access", RefreshToken: "refresh", AccessExpiresAt: time.Now()},
		User:      &users.UserDTO{Email: "ana@example.com"},
		Gyms:      []auth.GymSummary{},
	}}
	rec := httptest.NewRecorder()
	AuthLogin(svc, testLogger()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/login",
		`{"email":"ana@example.com","password":"long-enough"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.AccessToken != "access" || envelope.Data.RefreshToken != "refresh" {
		t.Fatalf("unexpected tokens %+v", envelope.Data)
	}
}

func TestAuthRefreshAndLogoutForwardToken(t *testing.T) {
	svc := &stubAuthService{pair: &auth.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}}

	rec := httptest.NewRecorder()
	AuthRefresh(svc, testLogger()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"abc"}`))
	if rec.Code != http.StatusOK || svc.gotToken != "abc" {
		t.Fatalf("refresh: status %d token %q", rec.Code, svc.gotToken)
	}

	rec = httptest.NewRecorder()
	AuthLogout(svc, testLogger()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/logout", `{"refresh_token":"def"}`))
	if rec.Code != http.StatusOK || svc.gotToken != "def" {
		t.Fatalf("logout: status %d token %q", rec.Code, svc.gotToken)
	}

	rec = httptest.NewRecorder()
	AuthRefresh(svc, testLogger()).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/refresh", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing token got %d", rec.Code)
	}
}

func TestAuthHandlersRequireService(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthLogin(nil, nil).ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/login", `{}`))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
