// Package migrations applies the SQL files under ./migrations through
// golang-migrate. The server applies pending migrations on start; cmd/migrate
// exposes the same operations for manual use.
package migrations

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type Migrator struct {
	migrate *migrate.Migrate
	logger  *slog.Logger
}

func NewMigrator(dbConnString string, logger *slog.Logger) (*Migrator, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	sourceURL := fmt.Sprintf("file://%s", filepath.Join(wd, "migrations"))

	m, err := migrate.New(sourceURL, dbConnString)
	if err != nil {
		return nil, fmt.Errorf("open migration source %s: %w", sourceURL, err)
	}

	return &Migrator{migrate: m, logger: logger}, nil
}

// Up applies every pending migration. An already current schema is not an
// error.
func (m *Migrator) Up() error {
	m.logger.Info("applying schema migrations")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("schema already up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	m.logger.Info("schema migrations applied")
	return nil
}

// Down reverts every applied migration.
func (m *Migrator) Down() error {
	m.logger.Info("reverting schema migrations")

	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}

	m.logger.Info("schema migrations reverted")
	return nil
}

// Steps applies n migrations forward, or reverts -n backward.
func (m *Migrator) Steps(n int) error {
	m.logger.Info("applying schema migrations", "steps", n)

	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply %d migration steps: %w", n, err)
	}

	return nil
}

func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}
