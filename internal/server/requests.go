package server

import (
	"regexp"
	"strings"
	"time"

	"github.com/softwove/roster/internal/domain"
)

// emailPattern is intentionally loose; the store's uniqueness constraint is
// the real gatekeeper. TLDs longer than 3 characters are rejected, matching
// the documented format rule.
var emailPattern = regexp.MustCompile(`^[\w-.]+@([\w-]+\.)+[\w-]{2,3}$`)

const (
	msgBlankProperty    = "Property can't be blank"
	msgRequiredProperty = "Property is required"
	msgInvalidEmail     = "Invalid email format"
	msgDateNotPast      = "Date must be earlier than current date"
)

type ValidationError struct {
	PropertyName string `json:"propertyName"`
	Message      string `json:"message"`
}

// CreateUserRequest is the POST /users payload. Pointer fields distinguish
// omitted values from empty ones.
type CreateUserRequest struct {
	Email       *string      `json:"email"`
	FirstName   *string      `json:"firstName"`
	LastName    *string      `json:"lastName"`
	BirthDate   *domain.Date `json:"birthDate"`
	Address     *string      `json:"address"`
	PhoneNumber *string      `json:"phoneNumber"`
}

func (r *CreateUserRequest) Validate() []ValidationError {
	var errs []ValidationError

	switch {
	case isBlank(r.Email):
		errs = append(errs, ValidationError{"email", "Email can't be blank"})
	case !emailPattern.MatchString(*r.Email):
		errs = append(errs, ValidationError{"email", msgInvalidEmail})
	}
	if isBlank(r.FirstName) {
		errs = append(errs, ValidationError{"firstName", "First name can't be blank"})
	}
	if isBlank(r.LastName) {
		errs = append(errs, ValidationError{"lastName", "Last name can't be blank"})
	}
	switch {
	case r.BirthDate == nil:
		errs = append(errs, ValidationError{"birthDate", "Date is required"})
	case !isPast(r.BirthDate.Time):
		errs = append(errs, ValidationError{"birthDate", msgDateNotPast})
	}

	return errs
}

func (r *CreateUserRequest) Details() domain.UserDetails {
	return domain.UserDetails{
		Email:       *r.Email,
		FirstName:   *r.FirstName,
		LastName:    *r.LastName,
		BirthDate:   r.BirthDate.Time,
		Address:     deref(r.Address),
		PhoneNumber: deref(r.PhoneNumber),
	}
}

// FullUpdateRequest is the PUT /users/{id} payload; every field is required.
type FullUpdateRequest struct {
	Email       *string      `json:"email"`
	FirstName   *string      `json:"firstName"`
	LastName    *string      `json:"lastName"`
	BirthDate   *domain.Date `json:"birthDate"`
	Address     *string      `json:"address"`
	PhoneNumber *string      `json:"phoneNumber"`
}

func (r *FullUpdateRequest) Validate() []ValidationError {
	var errs []ValidationError

	switch {
	case isBlank(r.Email):
		errs = append(errs, ValidationError{"email", msgBlankProperty})
	case !emailPattern.MatchString(*r.Email):
		errs = append(errs, ValidationError{"email", msgInvalidEmail})
	}
	if isBlank(r.FirstName) {
		errs = append(errs, ValidationError{"firstName", msgBlankProperty})
	}
	if isBlank(r.LastName) {
		errs = append(errs, ValidationError{"lastName", msgBlankProperty})
	}
	switch {
	case r.BirthDate == nil:
		errs = append(errs, ValidationError{"birthDate", msgRequiredProperty})
	case !isPast(r.BirthDate.Time):
		errs = append(errs, ValidationError{"birthDate", msgDateNotPast})
	}
	if isBlank(r.Address) {
		errs = append(errs, ValidationError{"address", msgBlankProperty})
	}
	if isBlank(r.PhoneNumber) {
		errs = append(errs, ValidationError{"phoneNumber", msgBlankProperty})
	}

	return errs
}

func (r *FullUpdateRequest) Details() domain.UserDetails {
	return domain.UserDetails{
		Email:       *r.Email,
		FirstName:   *r.FirstName,
		LastName:    *r.LastName,
		BirthDate:   r.BirthDate.Time,
		Address:     *r.Address,
		PhoneNumber: *r.PhoneNumber,
	}
}

// PartialUpdateRequest is the PATCH /users/{id} payload; every field is
// optional, and blank strings are treated as absent by the service.
type PartialUpdateRequest struct {
	Email       *string      `json:"email"`
	FirstName   *string      `json:"firstName"`
	LastName    *string      `json:"lastName"`
	BirthDate   *domain.Date `json:"birthDate"`
	Address     *string      `json:"address"`
	PhoneNumber *string      `json:"phoneNumber"`
}

func (r *PartialUpdateRequest) Validate() []ValidationError {
	var errs []ValidationError

	if !isBlank(r.Email) && !emailPattern.MatchString(*r.Email) {
		errs = append(errs, ValidationError{"email", msgInvalidEmail})
	}
	if r.BirthDate != nil && !isPast(r.BirthDate.Time) {
		errs = append(errs, ValidationError{"birthDate", msgDateNotPast})
	}

	return errs
}

func (r *PartialUpdateRequest) Patch() domain.UserPatch {
	patch := domain.UserPatch{
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Address:     r.Address,
		PhoneNumber: r.PhoneNumber,
	}
	if r.BirthDate != nil {
		patch.BirthDate = &r.BirthDate.Time
	}
	return patch
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// isPast reports whether the date is strictly before today, comparing
// calendar dates only.
func isPast(date time.Time) bool {
	y, m, d := time.Now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return date.Before(today)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
