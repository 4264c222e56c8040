package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/softwove/roster/internal/audit"
)

// UserService orchestrates validation of business rules and repository calls
// inside explicit transaction scopes. Each mutating operation is
// all-or-nothing; there are no retries.
type UserService struct {
	store         UserStoreTx
	recorder      audit.Recorder
	ageConstraint int
}

func NewUserService(store UserStoreTx, recorder audit.Recorder, ageConstraint int) *UserService {
	return &UserService{
		store:         store,
		recorder:      recorder,
		ageConstraint: ageConstraint,
	}
}

// List returns all users whose birth date falls within the inclusive range
// [from, to]. Future-date checks on the bounds are the transport layer's
// concern, not this operation's.
func (s *UserService) List(ctx context.Context, from, to time.Time) ([]User, error) {
	if from.After(to) {
		return nil, ErrInvalidDateRange
	}

	var users []User
	err := s.store.RunInTx(ctx, TxOptions{ReadOnly: true}, func(repo UserRepository) error {
		found, err := repo.FindByBirthDateBetween(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to list users by birth date: %w", err)
		}
		users = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Create persists a new user and returns the generated id. The age check
// runs before anything touches the store.
func (s *UserService) Create(ctx context.Context, details UserDetails) (int64, error) {
	if err := s.verifyAge(details.BirthDate); err != nil {
		return 0, err
	}

	user := User{
		Email:       details.Email,
		FirstName:   details.FirstName,
		LastName:    details.LastName,
		BirthDate:   details.BirthDate,
		Address:     details.Address,
		PhoneNumber: details.PhoneNumber,
	}

	err := s.store.RunInTx(ctx, TxOptions{}, func(repo UserRepository) error {
		if err := repo.Save(ctx, &user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.record(ctx, userCreatedEntry(user)); err != nil {
		return 0, err
	}
	return user.ID, nil
}

// FullUpdate overwrites every field of an existing user. The age check runs
// before the existence check, so an under-age payload fails with the age
// error even when the id does not exist.
func (s *UserService) FullUpdate(ctx context.Context, id int64, details UserDetails) error {
	if err := s.verifyAge(details.BirthDate); err != nil {
		return err
	}

	var updated User
	err := s.store.RunInTx(ctx, TxOptions{RepeatableRead: true}, func(repo UserRepository) error {
		user, err := s.getUser(ctx, repo, id)
		if err != nil {
			return err
		}

		user.Email = details.Email
		user.FirstName = details.FirstName
		user.LastName = details.LastName
		user.BirthDate = details.BirthDate
		user.Address = details.Address
		user.PhoneNumber = details.PhoneNumber

		if err := repo.Save(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		updated = *user
		return nil
	})
	if err != nil {
		return err
	}

	return s.record(ctx, userUpdatedEntry(updated))
}

// PartialUpdate applies only the fields present and non-blank in the patch.
// A supplied birth date is age-checked before the row is even loaded; a nil
// birth date is always skipped.
func (s *UserService) PartialUpdate(ctx context.Context, id int64, patch UserPatch) error {
	if patch.BirthDate != nil {
		if err := s.verifyAge(*patch.BirthDate); err != nil {
			return err
		}
	}

	var updated User
	err := s.store.RunInTx(ctx, TxOptions{RepeatableRead: true}, func(repo UserRepository) error {
		user, err := s.getUser(ctx, repo, id)
		if err != nil {
			return err
		}

		if patch.BirthDate != nil {
			user.BirthDate = *patch.BirthDate
		}
		applyNonBlank(&user.Email, patch.Email)
		applyNonBlank(&user.FirstName, patch.FirstName)
		applyNonBlank(&user.LastName, patch.LastName)
		applyNonBlank(&user.Address, patch.Address)
		applyNonBlank(&user.PhoneNumber, patch.PhoneNumber)

		if err := repo.Save(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		updated = *user
		return nil
	})
	if err != nil {
		return err
	}

	return s.record(ctx, userUpdatedEntry(updated))
}

// Delete removes the user and returns the deleted id.
func (s *UserService) Delete(ctx context.Context, id int64) (int64, error) {
	err := s.store.RunInTx(ctx, TxOptions{}, func(repo UserRepository) error {
		user, err := s.getUser(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.record(ctx, userDeletedEntry(id)); err != nil {
		return 0, err
	}
	return id, nil
}

// verifyAge compares calendar years only. The arithmetic is deliberately
// lenient near birthdays: it never accounts for month or day.
func (s *UserService) verifyAge(birthDate time.Time) error {
	age := time.Now().Year() - birthDate.Year()
	if age < s.ageConstraint {
		return &InvalidUserAgeError{AgeConstraint: s.ageConstraint}
	}
	return nil
}

func (s *UserService) getUser(ctx context.Context, repo UserRepository, id int64) (*User, error) {
	user, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, &UserNotFoundError{ID: id}
	}
	return user, nil
}

func (s *UserService) record(ctx context.Context, entry audit.Entry) error {
	if err := s.recorder.Record(ctx, entry); err != nil {
		return fmt.Errorf("user change persisted but audit entry was not recorded: %w", err)
	}
	return nil
}

func applyNonBlank(dst *string, src *string) {
	if src != nil && strings.TrimSpace(*src) != "" {
		*dst = *src
	}
}
