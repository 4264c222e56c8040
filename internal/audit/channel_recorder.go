package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/destel/rill"
)

type ChannelRecorderOptions struct {
	BufferSize   int
	BatchSize    int
	BatchTimeout time.Duration
	WorkerCount  int
}

func (o *ChannelRecorderOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
}

// typecheck
var _ Recorder = new(ChannelRecorder)

// ChannelRecorder buffers entries on a channel and bulk-inserts them from a
// worker pool. Entries accepted but not yet flushed are lost on crash; use
// the WAL recorder where that matters.
type ChannelRecorder struct {
	store    EntryStore
	workCh   chan Entry
	opts     ChannelRecorderOptions
	logger   *slog.Logger
	workerWg sync.WaitGroup
}

func NewChannelRecorder(store EntryStore, opts ChannelRecorderOptions, logger *slog.Logger) *ChannelRecorder {
	opts.defaults()

	return &ChannelRecorder{
		store:  store,
		workCh: make(chan Entry, opts.BufferSize),
		opts:   opts,
		logger: logger,
	}
}

func (r *ChannelRecorder) Start(ctx context.Context) {
	for range r.opts.WorkerCount {
		r.workerWg.Add(1)
		go r.worker(ctx)
	}
}

func (r *ChannelRecorder) Stop() {
	close(r.workCh)
	r.workerWg.Wait()
}

func (r *ChannelRecorder) Record(ctx context.Context, entry Entry) error {
	select {
	case r.workCh <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrRecorderFull
	}
}

func (r *ChannelRecorder) worker(ctx context.Context) {
	defer r.workerWg.Done()

	batches := rill.Batch(rill.FromChan(r.workCh, nil), r.opts.BatchSize, r.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}
		if err := r.store.BulkInsert(ctx, batch.Value); err != nil {
			r.logger.Error("failed to bulk insert audit entries", "error", err, "count", len(batch.Value))
		}
	}
}
