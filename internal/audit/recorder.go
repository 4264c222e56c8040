// Package audit persists an asynchronous trail of user mutations. Entries
// are buffered in-process and flushed to the store in batches; the HTTP
// request path only pays for the enqueue.
package audit

import (
	"context"
	"errors"
	"time"
)

type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	RecordedAt time.Time      `json:"recorded_at"`
	Details    map[string]any `json:"details"`
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Start(ctx context.Context)
	Stop()
}

// EntryStore is the persistence sink for audit entries.
type EntryStore interface {
	Insert(ctx context.Context, entry Entry) error
	BulkInsert(ctx context.Context, entries []Entry) error
}

// ErrRecorderFull is returned by Record when the in-process buffer has no
// capacity left.
var ErrRecorderFull = errors.New("audit recorder is full")
