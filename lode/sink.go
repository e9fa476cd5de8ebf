// Package lode persists session records and results in a Lode dataset.
package lode

import (
	"context"
	"errors"
	"sync"

	"github.com/numlab/numerosity/policy"
	"github.com/numlab/numerosity/types"
)

// Config holds the partition keys of one session.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Experiment is the outermost partition key.
	Experiment string
	// Day is derived from the session start time (YYYY-MM-DD UTC).
	Day string
	// SessionID is the session partition key.
	SessionID string
}

// ConfigFor derives the partition keys of a session.
func ConfigFor(dataset string, meta types.SessionMeta) Config {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return Config{
		Dataset:    dataset,
		Experiment: meta.Experiment,
		Day:        DeriveDay(meta.StartedAt),
		SessionID:  meta.SessionID,
	}
}

// Validate checks that every partition key is set.
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("lode: dataset is required")
	case c.Experiment == "":
		return errors.New("lode: experiment is required")
	case c.Day == "":
		return errors.New("lode: day is required")
	case c.SessionID == "":
		return errors.New("lode: session_id is required")
	}
	return nil
}

// Client abstracts the Lode storage client of one session.
type Client interface {
	// WriteRecords writes a batch of records, preserving order.
	WriteRecords(ctx context.Context, records []*types.Record) error
	// PutFile writes a named session file.
	PutFile(ctx context.Context, name string, data []byte) error
	// Close releases client resources.
	Close() error
}

// Sink adapts a Client to policy.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteRecords implements policy.Sink.
func (s *Sink) WriteRecords(ctx context.Context, records []*types.Record) error {
	return s.client.WriteRecords(ctx, records)
}

// Close implements policy.Sink. The client is shared with the session
// Store and closed by its owner.
func (s *Sink) Close() error {
	return nil
}

var _ policy.Sink = (*Sink)(nil)

// StubClient records writes without persisting.
type StubClient struct {
	mu      sync.Mutex
	Records []*types.Record
	Files   map[string][]byte
	Closed  bool
	// PutErr, if non-nil, is returned by PutFile.
	PutErr error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{Files: map[string][]byte{}}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, records []*types.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Records = append(c.Records, records...)
	return nil
}

// PutFile implements Client.
func (c *StubClient) PutFile(_ context.Context, name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PutErr != nil {
		return c.PutErr
	}
	c.Files[name] = data
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
	return nil
}

var _ Client = (*StubClient)(nil)
