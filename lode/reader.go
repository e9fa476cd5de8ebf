package lode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/numlab/numerosity/types"
)

// ErrSessionNotFound is returned when a session has no stored result.
var ErrSessionNotFound = errors.New("session not found")

// Reader reads stored sessions back for the CLI.
type Reader struct {
	dataset string
	ds      lode.Dataset
	store   lode.Store
}

// NewReader opens the dataset and store produced by factory.
func NewReader(dataset string, factory lode.StoreFactory) (*Reader, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := NewDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	store, err := factory()
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &Reader{dataset: dataset, ds: ds, store: store}, nil
}

// ListSessions returns the IDs of every session with stored files, sorted.
func (r *Reader) ListSessions(ctx context.Context) ([]string, error) {
	prefix := sessionPrefix(r.dataset)
	paths, err := r.store.List(ctx, prefix)
	if err != nil {
		err = WrapListError(err, prefix)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	seen := map[string]struct{}{}
	var ids []string
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			// Some stores return paths relative to their root prefix.
			if i := strings.Index(p, "sessions/"); i >= 0 {
				rest = p[i+len("sessions/"):]
			} else {
				continue
			}
		}
		id, _, found := strings.Cut(rest, "/")
		if !found || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadSession reads result.json of a session.
func (r *Reader) LoadSession(ctx context.Context, sessionID string) (*SessionDocument, error) {
	var doc SessionDocument
	if err := r.readJSON(ctx, sessionID, ResultFile, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadMetrics reads metrics.json of a session.
func (r *Reader) LoadMetrics(ctx context.Context, sessionID string) (*MetricsDocument, error) {
	var doc MetricsDocument
	if err := r.readJSON(ctx, sessionID, MetricsFile, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SessionRecords reads the streamed records of a session from the dataset,
// ordered by seq. Records written more than once by a retried flush are
// returned once.
func (r *Reader) SessionRecords(ctx context.Context, sessionID string) ([]types.Record, error) {
	snapshots, err := r.ds.Snapshots(ctx)
	if err != nil {
		err = WrapReadError(err, r.dataset+"/snapshots")
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	bySeq := map[int64]types.Record{}
	for _, snap := range snapshots {
		if !snapshotMatches(snap, "session_id", sessionID) {
			continue
		}
		items, err := r.ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", r.dataset, snap.ID))
		}
		for _, item := range items {
			row, ok := item.(map[string]any)
			if !ok || row["session_id"] != sessionID {
				continue
			}
			rec, err := fromRecordRow(row)
			if err != nil {
				return nil, fmt.Errorf("decode record: %w", err)
			}
			bySeq[rec.Seq] = rec
		}
	}

	out := make([]types.Record, 0, len(bySeq))
	for _, rec := range bySeq {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *Reader) readJSON(ctx context.Context, sessionID, name string, v any) error {
	path := sessionFilePath(r.dataset, sessionID, name)
	rc, err := r.store.Get(ctx, path)
	if err != nil {
		err = WrapReadError(err, path)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return WrapReadError(err, path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
