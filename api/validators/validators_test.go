package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
)

type sampleRequest struct {
	Email  string  `json:"email" validate:"required,email"`
	Locale *string `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
}

func TestDecodeJSONBody(t *testing.T) {
	var dest sampleRequest
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com","locale":"es-MX"}`))
	if err := DecodeJSONBody(req, &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.Email != "a@example.com" || dest.Locale == nil || *dest.Locale != "es-MX" {
		t.Fatalf("unexpected decode result %+v", dest)
	}
}

func TestDecodeJSONBodyRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"email":"a@example.com","extra":1}`,
		"bad email":     `{"email":"nope"}`,
		"bad locale":    `{"email":"a@example.com","locale":"not a tag"}`,
		"malformed":     `{"email":`,
	}
	for name, body := range cases {
		var dest sampleRequest
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
		if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	var dest sampleRequest
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), &dest)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["email"] != "is required" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func TestDecodeJSONBodyFieldDetails(t *testing.T) {
	type memberPatch struct {
		Role   *enums.GymRole  `json:"role,omitempty" validate:"omitempty,enum"`
		Status enums.GymStatus `json:"status" validate:"required,enum"`
		Count  int             `json:"count"`
	}
	cases := []struct {
		name  string
		body  string
		field string
		want  string
	}{
		{"unknown field", `{"status":"ACTIVE","nickname":"x"}`, "nickname", "is not allowed"},
		{"wrong type", `{"status":"ACTIVE","count":"three"}`, "count", "must be int"},
		{"bad enum", `{"status":"ARCHIVED"}`, "status", "ARCHIVED is not a recognised value"},
		{"bad pointer enum", `{"status":"ACTIVE","role":"JANITOR"}`, "role", "JANITOR is not a recognised value"},
	}
	for _, tc := range cases {
		var dest memberPatch
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), &dest)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		details, ok := typed.Details().(map[string]string)
		if !ok || details[tc.field] != tc.want {
			t.Fatalf("%s: unexpected details %#v", tc.name, typed.Details())
		}
	}

	var ok memberPatch
	if err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"SUSPENDED","role":"COACH"}`)), &ok); err != nil {
		t.Fatalf("expected valid enums to pass, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndOversizedBodies(t *testing.T) {
	var dest sampleRequest
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dest)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body is required" {
		t.Fatalf("unexpected empty body error %v", err)
	}

	huge := `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `@example.com"}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &dest)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("unexpected oversized body error %v", err)
	}

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com"}{"email":"b@example.com"}`)), &dest)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected trailing object to be rejected, got %v", err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	var got uuid.UUID
	var gotErr error
	r := chi.NewRouter()
	r.Get("/gyms/{gymId}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = ParseUUIDParam(req, "gymId")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/gyms/"+id.String(), nil))
	if gotErr != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, gotErr)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/gyms/abc", nil))
	if !pkgerrors.Is(gotErr, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", gotErr)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  Iron Temple  ", 4, "Iron"},
		{"  Iron \t\n Temple  ", 0, "Iron Temple"},
		{"Iron\x00 Temple", 0, "Iron Temple"},
		{"Ñandú Box", 5, "Ñandú"},
		{"Iron Temple", 5, "Iron"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
