package policy

import (
	"context"
	"sync"

	"github.com/numlab/numerosity/types"
)

// NoopPolicy accepts records without persisting them. Used when only the
// final result is stored.
type NoopPolicy struct {
	mu    sync.Mutex
	stats Stats
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// IngestRecord counts the record.
func (p *NoopPolicy) IngestRecord(context.Context, *types.Record) error {
	p.mu.Lock()
	p.stats.TotalRecords++
	p.mu.Unlock()
	return nil
}

// Flush counts the flush.
func (p *NoopPolicy) Flush(context.Context) error {
	p.mu.Lock()
	p.stats.FlushCount++
	p.mu.Unlock()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error { return nil }

// Stats returns policy statistics.
func (p *NoopPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

var _ Policy = (*NoopPolicy)(nil)
