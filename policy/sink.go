package policy

import (
	"context"
	"sync"

	"github.com/numlab/numerosity/types"
)

// Sink abstracts persistence for policies.
// Implementations may write to storage, forward to a queue, or stub for testing.
type Sink interface {
	// WriteRecords persists a batch of records, preserving order.
	WriteRecords(ctx context.Context, records []*types.Record) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
type StubSink struct {
	mu sync.Mutex

	// Batches holds every written batch in order.
	Batches [][]*types.Record
	// Closed indicates whether Close was called.
	Closed bool
	// ErrorOnWrite, if non-nil, is returned by WriteRecords.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteRecords records the batch without persisting.
func (s *StubSink) WriteRecords(_ context.Context, records []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.Batches = append(s.Batches, records)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Written returns every written record in write order.
func (s *StubSink) Written() []*types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Record
	for _, b := range s.Batches {
		out = append(out, b...)
	}
	return out
}

// BatchCount returns the number of WriteRecords calls that succeeded.
func (s *StubSink) BatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Batches)
}
