package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/softwove/roster/internal/audit"
	"github.com/softwove/roster/internal/domain"
)

// errorTimestampFormat renders timestamps like "2024-05-01 09:15:22PM".
const errorTimestampFormat = "2006-01-02 03:04:05PM"

// ErrorResponse is the structured error body for domain failures and
// request-body validation failures. ValidationErrors is present only for
// multi-field validation failures.
type ErrorResponse struct {
	Timestamp        string            `json:"timestamp"`
	StatusCode       int               `json:"statusCode"`
	ErrorMessage     string            `json:"errorMessage"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
}

// QueryErrorResponse is the flat error body for query-parameter constraint
// violations.
type QueryErrorResponse struct {
	Errors []string `json:"errors"`
}

type errorMapper struct {
	logger *slog.Logger
}

func (m *errorMapper) writeError(w http.ResponseWriter, statusCode int, message string) {
	m.writeJSON(w, statusCode, ErrorResponse{
		Timestamp:    time.Now().Format(errorTimestampFormat),
		StatusCode:   statusCode,
		ErrorMessage: message,
	})
}

func (m *errorMapper) writeValidationErrors(w http.ResponseWriter, errs []ValidationError) {
	m.writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Timestamp:        time.Now().Format(errorTimestampFormat),
		StatusCode:       http.StatusBadRequest,
		ErrorMessage:     "Validation failed",
		ValidationErrors: errs,
	})
}

func (m *errorMapper) writeQueryErrors(w http.ResponseWriter, messages []string) {
	m.writeJSON(w, http.StatusBadRequest, QueryErrorResponse{Errors: messages})
}

// writeServiceError maps domain failures onto HTTP statuses. Anything
// unclassified, unique-constraint violations included, falls through as a
// generic 500.
func (m *errorMapper) writeServiceError(w http.ResponseWriter, err error) {
	var notFound *domain.UserNotFoundError
	if errors.As(err, &notFound) {
		m.writeError(w, http.StatusNotFound, notFound.Error())
		return
	}

	var invalidAge *domain.InvalidUserAgeError
	if errors.As(err, &invalidAge) {
		m.writeError(w, http.StatusBadRequest, invalidAge.Error())
		return
	}

	if errors.Is(err, domain.ErrInvalidDateRange) {
		m.writeError(w, http.StatusBadRequest, domain.ErrInvalidDateRange.Error())
		return
	}

	if errors.Is(err, audit.ErrRecorderFull) {
		m.writeError(w, http.StatusTooManyRequests, audit.ErrRecorderFull.Error())
		return
	}

	m.logger.Error("unhandled service error", "error", err)
	m.writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (m *errorMapper) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		m.logger.Error("failed to encode error response", "error", err)
	}
}
