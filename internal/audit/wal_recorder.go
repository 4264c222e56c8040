package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/vadiminshakov/gowal"
)

var _ Recorder = new(WALRecorder)

// WALRecorder writes every entry to a write-ahead log before enqueueing it
// for batch insertion. On start it replays log entries past the last
// acknowledged index, so entries accepted before a crash still reach the
// store.
type WALRecorder struct {
	store           EntryStore
	wal             *gowal.Wal
	workCh          chan walItem
	doneCh          chan uint64
	opts            WALRecorderOptions
	logger          *slog.Logger
	stateFile       string
	lastAckedIndex  atomic.Uint64
	coordinatorDone chan struct{}
	workerWg        sync.WaitGroup
	// In-memory state tracking so acknowledgements do not hit disk per entry.
	lastFlushedIndex atomic.Uint64
	flushThreshold   int
	// Serializes WAL writes, iteration, and close.
	walMutex sync.Mutex
}

type WALRecorderOptions struct {
	BufferSize       int
	BatchSize        int
	BatchTimeout     time.Duration
	WALDir           string
	WALPrefix        string
	SegmentThreshold int
	MaxSegments      int
	IsInSyncDiskMode bool
	WorkerCount      int
	FlushThreshold   int
}

type walItem struct {
	Index uint64
	Entry Entry
}

func (o *WALRecorderOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WALDir == "" {
		o.WALDir = "./wal"
	}
	if o.WALPrefix == "" {
		o.WALPrefix = "audit_"
	}
	if o.SegmentThreshold == 0 {
		o.SegmentThreshold = 1000
	}
	if o.MaxSegments == 0 {
		o.MaxSegments = 10
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.FlushThreshold == 0 {
		o.FlushThreshold = 1000
	}
}

func NewWALRecorder(store EntryStore, opts WALRecorderOptions, logger *slog.Logger) (*WALRecorder, error) {
	opts.defaults()

	if err := os.MkdirAll(opts.WALDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              opts.WALDir,
		Prefix:           opts.WALPrefix,
		SegmentThreshold: opts.SegmentThreshold,
		MaxSegments:      opts.MaxSegments,
		IsInSyncDiskMode: opts.IsInSyncDiskMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	return &WALRecorder{
		store:           store,
		wal:             wal,
		workCh:          make(chan walItem, opts.BufferSize),
		doneCh:          make(chan uint64, opts.BufferSize),
		opts:            opts,
		logger:          logger,
		stateFile:       filepath.Join(opts.WALDir, "recorder.state"),
		coordinatorDone: make(chan struct{}),
		flushThreshold:  opts.FlushThreshold,
	}, nil
}

func (r *WALRecorder) Start(ctx context.Context) {
	lastFlushed, err := r.readLastAckedIndex()
	if err != nil {
		r.logger.Warn("failed to read recorder state, starting from 0", "error", err)
		lastFlushed = 0
	}
	r.lastFlushedIndex.Store(lastFlushed)
	r.lastAckedIndex.Store(lastFlushed)

	go r.stateCoordinator(ctx)

	for range r.opts.WorkerCount {
		r.workerWg.Add(1)
		go r.worker(ctx)
	}

	if err := r.replay(ctx); err != nil {
		r.logger.Error("failed to replay WAL", "error", err)
	}
}

func (r *WALRecorder) Stop() {
	close(r.workCh)
	r.workerWg.Wait()

	close(r.doneCh)
	<-r.coordinatorDone

	if err := r.writeLastAckedIndex(r.lastAckedIndex.Load()); err != nil {
		r.logger.Error("failed to flush recorder state", "error", err)
	}

	r.walMutex.Lock()
	if err := r.wal.Close(); err != nil {
		r.logger.Error("failed to close WAL", "error", err)
	}
	r.walMutex.Unlock()
}

func (r *WALRecorder) Record(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	// The WAL write is the durability step; once it succeeds the entry will
	// reach the store even if the process dies before the batch flush.
	r.walMutex.Lock()
	index := r.wal.CurrentIndex() + 1
	if err := r.wal.Write(index, entry.ID, payload); err != nil {
		r.walMutex.Unlock()
		return fmt.Errorf("failed to write to WAL: %w", err)
	}
	r.walMutex.Unlock()

	select {
	case r.workCh <- walItem{Index: index, Entry: entry}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrRecorderFull
	}
}

func (r *WALRecorder) replay(ctx context.Context) error {
	lastAcked := r.lastAckedIndex.Load()

	r.logger.Info("replaying WAL", "from_index", lastAcked)

	r.walMutex.Lock()
	for msg := range r.wal.Iterator() {
		if msg.Index() <= lastAcked {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			r.logger.Error("failed to unmarshal WAL entry", "index", msg.Index(), "error", err)
			continue
		}

		select {
		case r.workCh <- walItem{Index: msg.Index(), Entry: entry}:
		case <-ctx.Done():
			r.walMutex.Unlock()
			return ctx.Err()
		}
	}
	r.walMutex.Unlock()

	r.logger.Info("WAL replay completed")
	return nil
}

// stateCoordinator advances the acknowledged index in order, holding back
// out-of-order batch completions until their predecessors finish, and flushes
// the index to disk when enough progress accumulates.
func (r *WALRecorder) stateCoordinator(ctx context.Context) {
	defer close(r.coordinatorDone)

	completedOutOfOrder := make(map[uint64]bool)

	// Backup flush in case progress stalls below the threshold.
	flushTicker := time.NewTicker(5 * time.Second)
	defer flushTicker.Stop()

	for {
		select {
		case completedIndex, ok := <-r.doneCh:
			if !ok {
				return
			}

			lastAcked := r.lastAckedIndex.Load()

			switch {
			case completedIndex == lastAcked+1:
				r.lastAckedIndex.Add(1)

				// Drain any out-of-order completions that are now contiguous.
				for completedOutOfOrder[r.lastAckedIndex.Load()+1] {
					r.lastAckedIndex.Add(1)
					delete(completedOutOfOrder, r.lastAckedIndex.Load())
				}

				current := r.lastAckedIndex.Load()
				if current-r.lastFlushedIndex.Load() >= uint64(r.flushThreshold) {
					if err := r.writeLastAckedIndex(current); err != nil {
						r.logger.Error("failed to write recorder state", "error", err)
					} else {
						r.lastFlushedIndex.Store(current)
					}
				}

			case completedIndex > lastAcked+1:
				completedOutOfOrder[completedIndex] = true
			}
			// Duplicates (completedIndex <= lastAcked) are ignored.

		case <-flushTicker.C:
			current := r.lastAckedIndex.Load()
			if current > r.lastFlushedIndex.Load() {
				if err := r.writeLastAckedIndex(current); err != nil {
					r.logger.Error("failed to write recorder state", "error", err)
				} else {
					r.lastFlushedIndex.Store(current)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (r *WALRecorder) worker(ctx context.Context) {
	defer r.workerWg.Done()

	batches := rill.Batch(rill.FromChan(r.workCh, nil), r.opts.BatchSize, r.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}

		entries := make([]Entry, len(batch.Value))
		for i, item := range batch.Value {
			entries[i] = item.Entry
		}

		if err := r.store.BulkInsert(ctx, entries); err != nil {
			r.logger.Error("failed to bulk insert audit entries", "error", err, "count", len(entries))
		}
		for _, item := range batch.Value {
			r.doneCh <- item.Index
		}
	}
}

func (r *WALRecorder) readLastAckedIndex() (uint64, error) {
	data, err := os.ReadFile(r.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var index uint64
	if _, err := fmt.Sscanf(string(data), "%d", &index); err != nil {
		return 0, err
	}
	return index, nil
}

func (r *WALRecorder) writeLastAckedIndex(index uint64) error {
	return os.WriteFile(r.stateFile, []byte(fmt.Sprintf("%d", index)), 0644)
}
