package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/internal/authz"
	"github.com/angelmondragon/boxlink-backend/internal/gyms"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
)

func TestAdminGymStatus(t *testing.T) {
	admin := authz.Caller{UserID: uuid.New(), Role: enums.GlobalRoleAdmin}
	svc := &stubGymService{review: &gyms.ReviewDTO{}}
	router := gymRouter(admin, func(r chi.Router) {
		r.Post("/admin/gyms/{gymId}/status", AdminGymStatus(svc, testLogger()))
	})
	target := "/admin/gyms/" + uuid.NewString() + "/status"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, jsonRequest(http.MethodPost, target, `{"status":"ACTIVE"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotTarget != enums.GymStatusActive {
		t.Fatalf("unexpected target %s", svc.gotTarget)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, jsonRequest(http.MethodPost, target, `{"status":"PENDING_APPROVAL"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, jsonRequest(http.MethodPost, target, `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
