package lode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/types"
)

// Store writes the final artifacts of a session through a Client.
type Store struct {
	client Client
}

// NewStore creates a session store.
func NewStore(client Client) *Store {
	return &Store{client: client}
}

// SaveResult writes result.json holding the session identity, outcome and
// the full ExperimentResult.
func (s *Store) SaveResult(ctx context.Context, meta types.SessionMeta, result *types.ExperimentResult, outcome types.Outcome) error {
	doc := SessionDocument{Meta: meta, Outcome: outcome, Result: result}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session result: %w", err)
	}
	return s.client.PutFile(ctx, ResultFile, data)
}

// WriteMetrics writes metrics.json next to the result.
func (s *Store) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	doc := MetricsDocument{
		SessionID:   snap.SessionID,
		CompletedAt: completedAt.UTC().Format(time.RFC3339),
		Metrics:     snap,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return s.client.PutFile(ctx, MetricsFile, data)
}
