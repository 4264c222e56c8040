package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidDateRange is returned by List when the lower bound of the birth
// date range is after the upper bound.
var ErrInvalidDateRange = errors.New("DateFrom can't be after to dateTo")

// UserNotFoundError is returned when an operation references an id that has
// no matching row.
type UserNotFoundError struct {
	ID int64
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("User with id <%d> not found", e.ID)
}

// InvalidUserAgeError is returned when a birth date fails the minimum age
// check.
type InvalidUserAgeError struct {
	AgeConstraint int
}

func (e *InvalidUserAgeError) Error() string {
	return fmt.Sprintf("User age less than %d", e.AgeConstraint)
}
