package policy

import (
	"context"

	"github.com/numlab/numerosity/types"
)

// StrictPolicy writes every record synchronously as a batch of one.
// The caller blocks on sink latency; sink errors are returned.
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink, stats: newStatsRecorder()}
}

// IngestRecord writes the record immediately.
func (p *StrictPolicy) IngestRecord(ctx context.Context, rec *types.Record) error {
	p.stats.incTotal()
	if err := p.sink.WriteRecords(ctx, []*types.Record{rec}); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op; nothing is buffered.
func (p *StrictPolicy) Flush(context.Context) error {
	return nil
}

// Close closes the sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
