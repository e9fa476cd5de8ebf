package reader

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Reader abstracts read-only data access for CLI commands.
// Implementations may read a Lode dataset or serve stub data.
type Reader interface {
	ListSessions(ctx context.Context, opts ListSessionsOptions) ([]ListSessionItem, error)
	// InspectSession returns ErrNotFound for unknown sessions. Records are
	// included only when withRecords is set.
	InspectSession(ctx context.Context, sessionID string, withRecords bool) (*InspectSessionResponse, error)
	Stats(ctx context.Context, opts StatsOptions) (*EstimateStats, error)
}

// defaultReader overrides the storage-backed reader when set.
var defaultReader Reader

// SetReader sets the package-level reader instance.
// Tests use it to serve stub data; nil restores storage-backed reads.
func SetReader(r Reader) {
	defaultReader = r
}

// GetReader returns the override set by SetReader, or nil.
func GetReader() Reader {
	return defaultReader
}
