package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/softwove/roster/internal/audit"
	"github.com/softwove/roster/internal/domain"
	"github.com/softwove/roster/internal/repository"
)

type capturingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (r *capturingRecorder) Record(_ context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *capturingRecorder) Start(context.Context) {}
func (r *capturingRecorder) Stop()                 {}

func newUserRouter(t *testing.T) (chi.Router, *capturingRecorder) {
	t.Helper()

	recorder := &capturingRecorder{}
	service := domain.NewUserService(repository.NewMemoryUserStore(), recorder, 18)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := chi.NewRouter()
	router.Mount("/users", NewUserRouter(service, logger).Routes())
	return router, recorder
}

func doJSON(t *testing.T, router chi.Router, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func adultBirthDateJSON() string {
	return domain.NewDate(time.Now().Year()-26, time.April, 20).Format(domain.DateFormat)
}

func validCreatePayload() map[string]any {
	return map[string]any{
		"email":     "test.12@gmail.com",
		"firstName": "Mark",
		"lastName":  "Jovar",
		"birthDate": adultBirthDateJSON(),
	}
}

func TestCreateUser(t *testing.T) {
	router, recorder := newUserRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users", validCreatePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating user, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/users/1" {
		t.Fatalf("expected Location /users/1, got %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content type, got %q", got)
	}
	if len(recorder.entries) != 1 || recorder.entries[0].Action != "user.created" {
		t.Fatalf("expected a user.created audit entry, got %+v", recorder.entries)
	}
}

func TestCreateUserValidationFailure(t *testing.T) {
	router, recorder := newUserRouter(t)

	payload := map[string]any{
		"email":     "test.12gmailcom",
		"lastName":  "  ",
		"birthDate": time.Now().AddDate(1, 0, 0).Format(domain.DateFormat),
	}
	rec := doJSON(t, router, http.MethodPost, "/users", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Timestamp == "" {
		t.Fatalf("expected timestamp in error body")
	}
	if body.StatusCode != 400 {
		t.Fatalf("expected statusCode 400, got %d", body.StatusCode)
	}
	if body.ErrorMessage != "Validation failed" {
		t.Fatalf("expected Validation failed message, got %q", body.ErrorMessage)
	}
	if len(body.ValidationErrors) != 4 {
		t.Fatalf("expected 4 validation errors, got %+v", body.ValidationErrors)
	}

	want := map[string]string{
		"email":     "Invalid email format",
		"firstName": "First name can't be blank",
		"lastName":  "Last name can't be blank",
		"birthDate": "Date must be earlier than current date",
	}
	for _, ve := range body.ValidationErrors {
		if want[ve.PropertyName] != ve.Message {
			t.Fatalf("unexpected validation error %+v", ve)
		}
	}

	if len(recorder.entries) != 0 {
		t.Fatalf("expected no audit entries for rejected request")
	}
}

func TestCreateUserUnderAge(t *testing.T) {
	router, _ := newUserRouter(t)

	payload := validCreatePayload()
	payload["birthDate"] = domain.NewDate(time.Now().Year()-10, time.October, 20).Format(domain.DateFormat)

	rec := doJSON(t, router, http.MethodPost, "/users", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.ErrorMessage != "User age less than 18" {
		t.Fatalf("expected age error message, got %q", body.ErrorMessage)
	}
	if body.ValidationErrors != nil {
		t.Fatalf("expected validationErrors omitted for single-field domain error")
	}
}

func TestFullUpdateRoundTrip(t *testing.T) {
	router, _ := newUserRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users", validCreatePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	updatedBirthDate := domain.NewDate(time.Now().Year()-22, time.April, 25)
	update := map[string]any{
		"email":       "mark.jovar@gmail.com",
		"firstName":   "Mark",
		"lastName":    "Jovar",
		"birthDate":   updatedBirthDate.Format(domain.DateFormat),
		"address":     "address",
		"phoneNumber": "phone",
	}
	rec = doJSON(t, router, http.MethodPut, "/users/1", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating user, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/users?from=01-01-2000&to=%s", time.Now().Format(domain.DateFormat)), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing users, got %d: %s", rec.Code, rec.Body.String())
	}

	var users []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("failed to decode user list: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}

	got := users[0]
	wantFields := map[string]any{
		"id":          float64(1),
		"email":       "mark.jovar@gmail.com",
		"firstName":   "Mark",
		"lastName":    "Jovar",
		"birthDate":   updatedBirthDate.Format(domain.DateFormat),
		"address":     "address",
		"phoneNumber": "phone",
	}
	for field, want := range wantFields {
		if got[field] != want {
			t.Fatalf("field %s: expected %v, got %v", field, want, got[field])
		}
	}
}

func TestFullUpdateNotFound(t *testing.T) {
	router, _ := newUserRouter(t)

	update := map[string]any{
		"email":       "mark.jovar@gmail.com",
		"firstName":   "Mark",
		"lastName":    "Jovar",
		"birthDate":   adultBirthDateJSON(),
		"address":     "address",
		"phoneNumber": "phone",
	}
	rec := doJSON(t, router, http.MethodPut, "/users/999", update)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.ErrorMessage != "User with id <999> not found" {
		t.Fatalf("expected not found message, got %q", body.ErrorMessage)
	}
	if body.StatusCode != 404 {
		t.Fatalf("expected statusCode 404, got %d", body.StatusCode)
	}
	if body.ValidationErrors != nil {
		t.Fatalf("expected validationErrors omitted")
	}
}

func TestPartialUpdate(t *testing.T) {
	router, _ := newUserRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users", validCreatePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	t.Run("empty payload is a no-op", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, "/users/1", map[string]any{})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("under-age birth date rejected", func(t *testing.T) {
		payload := map[string]any{
			"birthDate": domain.NewDate(time.Now().Year()-5, time.October, 20).Format(domain.DateFormat),
		}
		rec := doJSON(t, router, http.MethodPatch, "/users/1", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode error body: %v", err)
		}
		if body.ErrorMessage != "User age less than 18" {
			t.Fatalf("expected age error message, got %q", body.ErrorMessage)
		}
	})

	t.Run("missing user rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, "/users/999", map[string]any{})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestDeleteUser(t *testing.T) {
	router, recorder := newUserRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/users", validCreatePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/users/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting user, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "User with id <1> was deleted" {
		t.Fatalf("unexpected delete confirmation %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain confirmation, got %q", ct)
	}

	rec = doJSON(t, router, http.MethodDelete, "/users/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", rec.Code)
	}

	actions := make([]string, 0, len(recorder.entries))
	for _, e := range recorder.entries {
		actions = append(actions, e.Action)
	}
	if len(actions) != 2 || actions[1] != "user.deleted" {
		t.Fatalf("expected created+deleted audit entries, got %v", actions)
	}
}

func TestListUsersQueryValidation(t *testing.T) {
	router, _ := newUserRouter(t)

	t.Run("from after to", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/users?from=01-01-2005&to=01-01-2000", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode error body: %v", err)
		}
		if body.ErrorMessage != "DateFrom can't be after to dateTo" {
			t.Fatalf("expected date range message, got %q", body.ErrorMessage)
		}
	})

	t.Run("future dates reported as flat errors", func(t *testing.T) {
		future := time.Now().AddDate(1, 0, 0).Format(domain.DateFormat)
		rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/users?from=%s&to=%s", future, future), nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		var body QueryErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode error body: %v", err)
		}
		if len(body.Errors) != 2 {
			t.Fatalf("expected 2 errors, got %v", body.Errors)
		}
		want := map[string]bool{
			"DateFrom can't be in future": true,
			"DateTo can't be in future":   true,
		}
		for _, msg := range body.Errors {
			if !want[msg] {
				t.Fatalf("unexpected error message %q", msg)
			}
		}
	})

	t.Run("missing and malformed parameters", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/users?from=2000-01-01", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		var body QueryErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode error body: %v", err)
		}
		if len(body.Errors) != 2 {
			t.Fatalf("expected 2 errors, got %v", body.Errors)
		}
	})
}

func TestCreateUserMalformedBody(t *testing.T) {
	router, _ := newUserRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestRecorderFullSurfacesAsTooManyRequests(t *testing.T) {
	router, recorder := newUserRouter(t)
	recorder.err = audit.ErrRecorderFull

	rec := doJSON(t, router, http.MethodPost, "/users", validCreatePayload())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when recorder is full, got %d", rec.Code)
	}
}
