package lode

import (
	"context"
	"fmt"
	"path"

	"github.com/justapithecus/lode/lode"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Storage selects and locates a storage backend.
type Storage struct {
	// Backend is fs, s3 or memory.
	Backend string
	// Path is a directory for fs and "bucket/prefix" for s3.
	Path         string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Factory builds the store factory for the backend. Each memory factory
// owns its own store.
func (s Storage) Factory(ctx context.Context) (lode.StoreFactory, error) {
	switch s.Backend {
	case BackendFS, "":
		if s.Path == "" {
			return nil, fmt.Errorf("storage path is required for the %s backend", BackendFS)
		}
		return lode.NewFSFactory(s.Path), nil
	case BackendS3:
		bucket, prefix := ParseS3Path(s.Path)
		return NewS3Factory(ctx, S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.Region,
			Endpoint:     s.Endpoint,
			UsePathStyle: s.UsePathStyle,
		})
	case BackendMemory:
		return SharedFactory(lode.NewMemory()), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// Location returns where a session's files live, as reported to adapters.
func (s Storage) Location(dataset, sessionID string) string {
	rel := path.Join("datasets", dataset, "sessions", sessionID)
	switch s.Backend {
	case BackendS3:
		return "s3://" + path.Join(s.Path, rel)
	case BackendMemory:
		return "memory://" + rel
	default:
		return path.Join(s.Path, rel)
	}
}
