package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwove/roster/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ domain.UserStoreTx = new(PgxUserStore)

// PgxUserStore runs units of work against Postgres, one transaction per
// operation. Update paths request repeatable read so the read-modify-write
// sequence is protected from concurrent writers; conflicts surface as errors
// from the store rather than being retried here.
type PgxUserStore struct {
	db *pgxpool.Pool
}

func NewPgxUserStore(db *pgxpool.Pool) *PgxUserStore {
	return &PgxUserStore{db: db}
}

func (s *PgxUserStore) RunInTx(ctx context.Context, opts domain.TxOptions, fn func(repo domain.UserRepository) error) error {
	txOpts := pgx.TxOptions{}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	if opts.RepeatableRead {
		txOpts.IsoLevel = pgx.RepeatableRead
	}

	tx, err := s.db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&pgxUserRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgxUserRepository struct {
	q querier
}

func (r *pgxUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, email, first_name, last_name, birth_date, COALESCE(address, ''), COALESCE(phone_number, '')
		FROM users
		WHERE id = $1
	`

	var user domain.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.BirthDate, &user.Address, &user.PhoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &user, nil
}

func (r *pgxUserRepository) FindByBirthDateBetween(ctx context.Context, from, to time.Time) ([]domain.User, error) {
	query := `
		SELECT id, email, first_name, last_name, birth_date, COALESCE(address, ''), COALESCE(phone_number, '')
		FROM users
		WHERE birth_date BETWEEN $1 AND $2
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by birth date: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID, &user.Email, &user.FirstName, &user.LastName,
			&user.BirthDate, &user.Address, &user.PhoneNumber); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user rows: %w", err)
	}

	return users, nil
}

func (r *pgxUserRepository) Save(ctx context.Context, user *domain.User) error {
	if user.ID == 0 {
		query := `
			INSERT INTO users (email, first_name, last_name, birth_date, address, phone_number)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
			RETURNING id
		`

		err := r.q.QueryRow(ctx, query,
			user.Email, user.FirstName, user.LastName, user.BirthDate,
			user.Address, user.PhoneNumber).Scan(&user.ID)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	}

	query := `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, birth_date = $5,
		    address = NULLIF($6, ''), phone_number = NULLIF($7, '')
		WHERE id = $1
	`

	if _, err := r.q.Exec(ctx, query,
		user.ID, user.Email, user.FirstName, user.LastName, user.BirthDate,
		user.Address, user.PhoneNumber); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *pgxUserRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
