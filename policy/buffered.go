package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/numlab/numerosity/log"
	"github.com/numlab/numerosity/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferRecords bounds the in-memory buffer. Must be positive.
	MaxBufferRecords int

	// FlushThreshold triggers a flush once this many records are buffered.
	// Zero means records are only written at session end.
	FlushThreshold int

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
// A full session of five blocks per half produces well under 256 records.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferRecords: 256,
	}
}

// ErrBufferFull is returned when the buffer cannot accept another record.
var ErrBufferFull = errors.New("buffer full: cannot accept record")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: MaxBufferRecords must be positive")

// BufferedPolicy holds records in a bounded buffer and writes them in one
// batch, either when FlushThreshold is reached or at session end.
//
// On flush failure the buffer is kept intact so the next flush retries the
// same records. Records are never reordered.
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu     sync.Mutex // guards buffer state and stats
	buffer []*types.Record
	stats  *statsRecorder
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config is invalid.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferRecords <= 0 {
		return nil, ErrInvalidConfig
	}
	if config.FlushThreshold > config.MaxBufferRecords {
		config.FlushThreshold = config.MaxBufferRecords
	}
	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.Record, 0, config.MaxBufferRecords),
		stats:  newStatsRecorder(),
	}, nil
}

// IngestRecord buffers the record and flushes when the threshold is hit.
func (p *BufferedPolicy) IngestRecord(ctx context.Context, rec *types.Record) error {
	p.mu.Lock()
	p.stats.incTotalLocked()
	if len(p.buffer) >= p.config.MaxBufferRecords {
		p.stats.incErrorsLocked()
		p.mu.Unlock()
		p.logBufferOverflow(rec)
		return ErrBufferFull
	}
	p.buffer = append(p.buffer, rec)
	shouldFlush := p.config.FlushThreshold > 0 && len(p.buffer) >= p.config.FlushThreshold
	p.mu.Unlock()

	if shouldFlush {
		return p.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered records to the sink.
// The buffer is cleared only after a successful write.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incFlushLocked()
	if len(p.buffer) == 0 {
		return nil
	}

	batch := p.buffer
	if err := p.sink.WriteRecords(ctx, batch); err != nil {
		p.stats.incErrorsLocked()
		p.logFlushFailure(len(batch), err)
		return err
	}
	p.stats.incPersistedLocked(int64(len(batch)))
	p.buffer = make([]*types.Record, 0, p.config.MaxBufferRecords)
	return nil
}

// Close flushes remaining records and closes the sink.
func (p *BufferedPolicy) Close() error {
	flushErr := p.Flush(context.Background())
	return errors.Join(flushErr, p.sink.Close())
}

// Stats returns policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(len(p.buffer))
}

func (p *BufferedPolicy) logBufferOverflow(rec *types.Record) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("buffer overflow", map[string]any{
		"record_type": string(rec.Type),
		"seq":         rec.Seq,
		"policy":      "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(records int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffered flush failed", map[string]any{
		"records": records,
		"error":   err.Error(),
		"policy":  "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
