package reader

import (
	"context"
	"errors"
	"fmt"
	"sort"

	store "github.com/numlab/numerosity/lode"
	"github.com/numlab/numerosity/types"
)

// LodeReader reads sessions from a Lode dataset.
type LodeReader struct {
	r *store.Reader
}

// NewLodeReader wraps a dataset reader.
func NewLodeReader(r *store.Reader) *LodeReader {
	return &LodeReader{r: r}
}

// Open builds a LodeReader for the given backend.
func Open(ctx context.Context, dataset string, storage store.Storage) (*LodeReader, error) {
	factory, err := storage.Factory(ctx)
	if err != nil {
		return nil, err
	}
	r, err := store.NewReader(dataset, factory)
	if err != nil {
		return nil, err
	}
	return NewLodeReader(r), nil
}

// ListSessions lists stored results, most recent first.
func (l *LodeReader) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]ListSessionItem, error) {
	docs, err := l.documents(ctx, opts.Experiment)
	if err != nil {
		return nil, err
	}

	items := make([]ListSessionItem, 0, len(docs))
	for _, doc := range docs {
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

// InspectSession loads a stored result. A session whose process died before
// the result was written is rebuilt from its streamed records.
func (l *LodeReader) InspectSession(ctx context.Context, sessionID string, withRecords bool) (*InspectSessionResponse, error) {
	doc, err := l.r.LoadSession(ctx, sessionID)
	switch {
	case err == nil:
		resp := fromDocument(doc)
		if m, err := l.r.LoadMetrics(ctx, sessionID); err == nil {
			resp.Metrics = &m.Metrics
		} else if !errors.Is(err, store.ErrSessionNotFound) {
			return nil, err
		}
		if !withRecords {
			resp.Records = nil
		}
		return resp, nil
	case !errors.Is(err, store.ErrSessionNotFound):
		return nil, err
	}

	records, err := l.r.SessionRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	resp := &InspectSessionResponse{
		SessionID: sessionID,
		Outcome:   "incomplete",
		Source:    "records",
		Order:     halfOrder(records),
		Cells:     SummarizeTrials(records),
	}
	for _, rec := range records {
		if rec.Type == types.RecordTypeTrial {
			resp.Trials++
		}
	}
	if withRecords {
		resp.Records = records
	}
	return resp, nil
}

// Stats aggregates estimates of stored sessions. Only finished sessions
// count unless IncludeAborted is set.
func (l *LodeReader) Stats(ctx context.Context, opts StatsOptions) (*EstimateStats, error) {
	docs, err := l.documents(ctx, opts.Experiment)
	if err != nil {
		return nil, err
	}
	return aggregate(docs, opts), nil
}

func (l *LodeReader) documents(ctx context.Context, experiment string) ([]*store.SessionDocument, error) {
	ids, err := l.r.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]*store.SessionDocument, 0, len(ids))
	for _, id := range ids {
		doc, err := l.r.LoadSession(ctx, id)
		if errors.Is(err, store.ErrSessionNotFound) {
			// Metrics only, or records only: not a stored result.
			continue
		}
		if err != nil {
			return nil, err
		}
		if experiment != "" && doc.Meta.Experiment != experiment {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func aggregate(docs []*store.SessionDocument, opts StatsOptions) *EstimateStats {
	a := newEstimateAggregator()
	stats := &EstimateStats{}
	for _, doc := range docs {
		switch doc.Outcome.Status {
		case types.OutcomeFinished:
		case types.OutcomeAborted:
			if !opts.IncludeAborted {
				continue
			}
		default:
			continue
		}
		if doc.Result == nil {
			continue
		}
		stats.Sessions++
		a.add(doc.Result.RawData.Trials)
	}
	stats.Trials = a.trials
	stats.Cells = a.result()
	return stats
}

func fromDocument(doc *store.SessionDocument) *InspectSessionResponse {
	resp := &InspectSessionResponse{
		SessionID:     doc.Meta.SessionID,
		ParticipantID: deref(doc.Meta.ParticipantID),
		Experiment:    doc.Meta.Experiment,
		Seed:          doc.Meta.Seed,
		StartedAt:     doc.Meta.StartedAt,
		Outcome:       string(doc.Outcome.Status),
		Message:       doc.Outcome.Message,
		QuitReason:    doc.Outcome.QuitReason,
		Trials:        doc.Outcome.Trials,
		Source:        "result",
	}
	if doc.Result != nil {
		resp.Settings = doc.Result.Settings
		resp.Order = halfOrder(doc.Result.RawData.Trials)
		resp.Cells = SummarizeTrials(doc.Result.RawData.Trials)
		resp.Records = doc.Result.RawData.Trials
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ Reader = (*LodeReader)(nil)
