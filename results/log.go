// Package results holds the append-only ResultLog of a session.
package results

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/numlab/numerosity/log"
	"github.com/numlab/numerosity/types"
)

// Ingester receives each record as it is appended, for incremental persistence.
type Ingester interface {
	IngestRecord(ctx context.Context, rec *types.Record) error
}

// Log is the append-only record list of one session.
// Safe for concurrent use.
type Log struct {
	clock    clockwork.Clock
	ingester Ingester
	logger   *log.Logger

	// ingestMu serializes Append so forwarding preserves seq order.
	ingestMu sync.Mutex

	mu           sync.Mutex
	records      []types.Record
	seq          int64
	ingestErrors int64
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the clock used for record timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(l *Log) { l.clock = c }
}

// WithIngester forwards every appended record to ing.
func WithIngester(ing Ingester) Option {
	return func(l *Log) { l.ingester = ing }
}

// WithLogger sets the logger for ingestion failures.
func WithLogger(logger *log.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// NewLog creates an empty log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		clock:  clockwork.NewRealClock(),
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append assigns seq and ts to rec, stores a copy and forwards it to the
// ingester. Ingestion failures are logged; the record stays in the log.
// Forwarding runs outside the record lock, so readers are never blocked by
// a slow ingester; ingestMu keeps records reaching it in seq order.
func (l *Log) Append(ctx context.Context, rec *types.Record) types.Record {
	l.ingestMu.Lock()
	defer l.ingestMu.Unlock()

	l.mu.Lock()
	l.seq++
	rec.Seq = l.seq
	if rec.TS.IsZero() {
		rec.TS = l.clock.Now().UTC()
	}
	stored := *rec
	l.records = append(l.records, stored)
	l.mu.Unlock()

	if l.ingester != nil {
		fwd := stored
		if err := l.ingester.IngestRecord(ctx, &fwd); err != nil {
			l.mu.Lock()
			l.ingestErrors++
			l.mu.Unlock()
			l.logger.Error("record ingestion failed", map[string]any{
				"seq":   stored.Seq,
				"type":  string(stored.Type),
				"error": err.Error(),
			})
		}
	}
	return stored
}

// Records returns a copy of every record in append order.
func (l *Log) Records() []types.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Record(nil), l.records...)
}

// Trials returns the trial records in append order.
func (l *Log) Trials() []types.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Record
	for _, r := range l.records {
		if r.Type == types.RecordTypeTrial {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the most recent record.
func (l *Log) Last() (types.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return types.Record{}, false
	}
	return l.records[len(l.records)-1], true
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// IngestErrors returns how many records failed to reach the ingester.
func (l *Log) IngestErrors() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ingestErrors
}

// Result builds the final ExperimentResult.
func (l *Log) Result(settings types.Settings) *types.ExperimentResult {
	return &types.ExperimentResult{
		Settings: settings,
		RawData:  types.RawData{Trials: l.Records()},
	}
}
