package lode

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/numlab/numerosity/types"
)

// LodeClient is the Lode-backed implementation of Client.
// Records go to the Hive-partitioned dataset
// experiment/day/session_id/record_type; session files go straight to the
// store under sessions/<session_id>/.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	mu sync.Mutex // serializes dataset writes
}

// NewLodeClient creates a client with filesystem storage rooted at root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client over a custom store factory.
// Use SharedFactory(lode.NewMemory()) for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := NewDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}, nil
}

// WriteRecords writes a batch of records as one dataset snapshot.
func (c *LodeClient) WriteRecords(ctx context.Context, records []*types.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]any, 0, len(records))
	for _, rec := range records {
		row, err := toRecordRow(rec, c.config)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.Dataset+"/session_id="+c.config.SessionID)
	}
	return nil
}

// PutFile writes a session file.
// The name must not contain path separators or "..".
func (c *LodeClient) PutFile(ctx context.Context, name string, data []byte) error {
	if err := validateFileName(name); err != nil {
		return err
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}
	path := sessionFilePath(c.config.Dataset, c.config.SessionID, name)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Datasets and stores hold no open handles in the current Lode API.
	return nil
}

func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// sessionPrefix is the store prefix holding every session's files.
func sessionPrefix(dataset string) string {
	return fmt.Sprintf("datasets/%s/sessions/", dataset)
}

// sessionFilePath computes datasets/<dataset>/sessions/<session_id>/<name>.
func sessionFilePath(dataset, sessionID, name string) string {
	return sessionPrefix(dataset) + sessionID + "/" + name
}

func validateFileName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid session file name %q", name)
	}
	for _, r := range name {
		if r == '/' || r == '\\' {
			return fmt.Errorf("invalid session file name %q", name)
		}
	}
	return nil
}

var _ Client = (*LodeClient)(nil)
