package reader

import (
	"context"
	"fmt"
	"sort"

	store "github.com/numlab/numerosity/lode"
)

// StubReader serves sessions held in memory. It is used by command tests.
type StubReader struct {
	Docs []*store.SessionDocument
	// Err, when set, is returned by every method.
	Err error
}

// NewStubReader creates a stub over the given documents.
func NewStubReader(docs ...*store.SessionDocument) *StubReader {
	return &StubReader{Docs: docs}
}

// ListSessions implements Reader.
func (s *StubReader) ListSessions(_ context.Context, opts ListSessionsOptions) ([]ListSessionItem, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var items []ListSessionItem
	for _, doc := range s.Docs {
		if opts.Experiment != "" && doc.Meta.Experiment != opts.Experiment {
			continue
		}
		if opts.Outcome != "" && string(doc.Outcome.Status) != opts.Outcome {
			continue
		}
		items = append(items, ListSessionItem{
			SessionID:     doc.Meta.SessionID,
			ParticipantID: deref(doc.Meta.ParticipantID),
			Experiment:    doc.Meta.Experiment,
			Outcome:       string(doc.Outcome.Status),
			Trials:        doc.Outcome.Trials,
			StartedAt:     doc.Meta.StartedAt,
			DurationMs:    doc.Outcome.Duration.Milliseconds(),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartedAt.After(items[j].StartedAt)
	})
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, nil
}

// InspectSession implements Reader.
func (s *StubReader) InspectSession(_ context.Context, sessionID string, withRecords bool) (*InspectSessionResponse, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, doc := range s.Docs {
		if doc.Meta.SessionID == sessionID {
			resp := fromDocument(doc)
			if !withRecords {
				resp.Records = nil
			}
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
}

// Stats implements Reader.
func (s *StubReader) Stats(_ context.Context, opts StatsOptions) (*EstimateStats, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var docs []*store.SessionDocument
	for _, doc := range s.Docs {
		if opts.Experiment == "" || doc.Meta.Experiment == opts.Experiment {
			docs = append(docs, doc)
		}
	}
	return aggregate(docs, opts), nil
}

var _ Reader = (*StubReader)(nil)
