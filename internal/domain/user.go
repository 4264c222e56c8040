package domain

import (
	"context"
	"time"
)

type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	BirthDate   time.Time `json:"birthDate"`
	Address     string    `json:"address"`
	PhoneNumber string    `json:"phoneNumber"`
}

// UserDetails carries the full set of fields for create and full-update
// operations. Fields are expected to be validated at the transport boundary
// before they reach the service.
type UserDetails struct {
	Email       string
	FirstName   string
	LastName    string
	BirthDate   time.Time
	Address     string
	PhoneNumber string
}

// UserPatch carries optional fields for partial updates. A nil pointer means
// the field was omitted from the request; a pointer to a blank string is
// skipped as well.
type UserPatch struct {
	Email       *string
	FirstName   *string
	LastName    *string
	BirthDate   *time.Time
	Address     *string
	PhoneNumber *string
}

type UserRepository interface {
	// FindByID returns (nil, nil) when no user exists with the given id.
	FindByID(ctx context.Context, id int64) (*User, error)
	// FindByBirthDateBetween returns users whose birth date falls within
	// the inclusive range [from, to].
	FindByBirthDateBetween(ctx context.Context, from, to time.Time) ([]User, error)
	// Save inserts the user when ID is zero, filling in the generated id,
	// and updates the existing row otherwise.
	Save(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
}

// TxOptions selects the transaction characteristics for a unit of work.
type TxOptions struct {
	ReadOnly       bool
	RepeatableRead bool
}

// UserStoreTx provides an explicit transactional boundary around repository
// calls. Implementations may wrap a database transaction or, in-memory, a
// coarse lock.
type UserStoreTx interface {
	RunInTx(ctx context.Context, opts TxOptions, fn func(repo UserRepository) error) error
}
