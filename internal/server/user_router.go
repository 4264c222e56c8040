package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/softwove/roster/internal/domain"
)

type UserRouter struct {
	userService *domain.UserService
	logger      *slog.Logger
	errors      errorMapper
}

func NewUserRouter(userService *domain.UserService, logger *slog.Logger) *UserRouter {
	return &UserRouter{
		userService: userService,
		logger:      logger,
		errors:      errorMapper{logger: logger},
	}
}

func (ur *UserRouter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", ur.listUsers)
	r.Post("/", ur.createUser)
	r.Put("/{id}", ur.fullUpdateUser)
	r.Patch("/{id}", ur.partialUpdateUser)
	r.Delete("/{id}", ur.deleteUser)
	return r
}

type userResponse struct {
	ID          int64       `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	BirthDate   domain.Date `json:"birthDate"`
	Address     string      `json:"address"`
	PhoneNumber string      `json:"phoneNumber"`
}

func (ur *UserRouter) listUsers(w http.ResponseWriter, r *http.Request) {
	from, fromErrs := parseDateParam(r, "from", "DateFrom")
	to, toErrs := parseDateParam(r, "to", "DateTo")
	if messages := append(fromErrs, toErrs...); len(messages) > 0 {
		ur.errors.writeQueryErrors(w, messages)
		return
	}

	users, err := ur.userService.List(r.Context(), from.Time, to.Time)
	if err != nil {
		ur.errors.writeServiceError(w, err)
		return
	}

	response := make([]userResponse, 0, len(users))
	for _, user := range users {
		response = append(response, userResponse{
			ID:          user.ID,
			Email:       user.Email,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			BirthDate:   domain.Date{Time: user.BirthDate},
			Address:     user.Address,
			PhoneNumber: user.PhoneNumber,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		ur.logger.Error("failed to encode user list response", "error", err)
	}
}

func (ur *UserRouter) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ur.logger.Warn("failed to decode create user request", "error", err)
		ur.errors.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		ur.errors.writeValidationErrors(w, errs)
		return
	}

	id, err := ur.userService.Create(r.Context(), req.Details())
	if err != nil {
		ur.errors.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%d", r.URL.Path, id))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
}

func (ur *UserRouter) fullUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ur.userID(w, r)
	if !ok {
		return
	}

	var req FullUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ur.logger.Warn("failed to decode full update request", "error", err, "id", id)
		ur.errors.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		ur.errors.writeValidationErrors(w, errs)
		return
	}

	if err := ur.userService.FullUpdate(r.Context(), id, req.Details()); err != nil {
		ur.errors.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func (ur *UserRouter) partialUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ur.userID(w, r)
	if !ok {
		return
	}

	var req PartialUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ur.logger.Warn("failed to decode partial update request", "error", err, "id", id)
		ur.errors.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		ur.errors.writeValidationErrors(w, errs)
		return
	}

	if err := ur.userService.PartialUpdate(r.Context(), id, req.Patch()); err != nil {
		ur.errors.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func (ur *UserRouter) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ur.userID(w, r)
	if !ok {
		return
	}

	deletedID, err := ur.userService.Delete(r.Context(), id)
	if err != nil {
		ur.errors.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "User with id <%d> was deleted", deletedID)
}

func (ur *UserRouter) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		ur.errors.writeValidationErrors(w, []ValidationError{{PropertyName: "id", Message: "Id must be a number"}})
		return 0, false
	}
	return id, true
}

// parseDateParam validates a dd-MM-yyyy query parameter. The label matches
// the parameter's documented name in client-facing messages.
func parseDateParam(r *http.Request, name, label string) (domain.Date, []string) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return domain.Date{}, []string{fmt.Sprintf("%s is required", label)}
	}

	date, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, []string{fmt.Sprintf("%s must match dd-MM-yyyy format", label)}
	}

	if isFuture(date.Time) {
		return domain.Date{}, []string{fmt.Sprintf("%s can't be in future", label)}
	}

	return date, nil
}

// isFuture reports whether the date is strictly after today, comparing
// calendar dates only.
func isFuture(date time.Time) bool {
	y, m, d := time.Now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return date.After(today)
}
