package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwove/roster/internal/audit"
)

var _ audit.EntryStore = new(PgxAuditStore)

// PgxAuditStore persists audit entries to the audit_log table. Writes happen
// off the request path, batched by the recorder.
type PgxAuditStore struct {
	db *pgxpool.Pool
}

func NewPgxAuditStore(db *pgxpool.Pool) *PgxAuditStore {
	return &PgxAuditStore{db: db}
}

func (s *PgxAuditStore) Insert(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (entry_id, action, entity, entity_id, recorded_at, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := s.db.Exec(ctx, query,
		entry.ID, entry.Action, entry.Entity, entry.EntityID, entry.RecordedAt, details); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *PgxAuditStore) BulkInsert(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO audit_log (entry_id, action, entity, entity_id, recorded_at, details)
		VALUES
	`

	values := make([]string, len(entries))
	args := make([]any, 0, len(entries)*6)
	argIndex := 1

	for i, entry := range entries {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}

		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3, argIndex+4, argIndex+5)
		args = append(args, entry.ID, entry.Action, entry.Entity, entry.EntityID, entry.RecordedAt, details)
		argIndex += 6
	}

	query += strings.Join(values, ", ")

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert audit entries: %w", err)
	}
	return nil
}
