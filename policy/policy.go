// Package policy controls how ResultLog records reach storage during a
// session.
//
// Records are never dropped. Policies differ only in when they write:
//   - strict: every record is written as it is appended
//   - buffered: records are held in memory and written at session end
//   - streaming: records are written in batches by count or interval
package policy

import (
	"context"
	"sync"

	"github.com/numlab/numerosity/types"
)

// Policy receives records from the ResultLog.
type Policy interface {
	// IngestRecord accepts one record. Errors are reported to the caller,
	// which keeps the record in memory regardless.
	IngestRecord(ctx context.Context, rec *types.Record) error

	// Flush writes any buffered records. Called when the session ends.
	Flush(ctx context.Context) error

	// Close flushes and releases the sink.
	Close() error

	// Stats returns a consistent snapshot of policy metrics.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalRecords is the number of records received.
	TotalRecords int64
	// RecordsPersisted is the number of records written to the sink.
	RecordsPersisted int64
	// Buffered is the number of records waiting for a flush.
	Buffered int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of failed sink writes.
	Errors int64
}

// statsRecorder is an internal helper for thread-safe stats management.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods
//   - BufferedPolicy and StreamingPolicy use the Locked methods while
//     holding their own mu, keeping buffer state and counters atomic
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalRecords++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.RecordsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods: caller holds the policy's mu. ---

func (r *statsRecorder) incTotalLocked()            { r.stats.TotalRecords++ }
func (r *statsRecorder) incPersistedLocked(n int64) { r.stats.RecordsPersisted += n }
func (r *statsRecorder) incErrorsLocked()           { r.stats.Errors++ }
func (r *statsRecorder) incFlushLocked()            { r.stats.FlushCount++ }

// snapshotLocked returns stats with the given buffered count.
func (r *statsRecorder) snapshotLocked(buffered int) Stats {
	s := r.stats
	s.Buffered = int64(buffered)
	return s
}
