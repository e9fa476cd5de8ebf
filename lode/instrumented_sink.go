package lode

import (
	"context"

	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/policy"
	"github.com/numlab/numerosity/types"
)

// InstrumentedSink wraps a policy.Sink and counts store writes.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRecords delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteRecords(ctx context.Context, records []*types.Record) error {
	err := s.inner.WriteRecords(ctx, records)
	if err != nil {
		s.collector.IncStoreFailure()
	} else {
		s.collector.IncStoreWrite()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
