// Package adapter publishes session completion notices to downstream
// systems once a session has ended and its result is stored.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/numlab/numerosity/types"
)

// EventTypeSessionCompleted is the event_type of every notice.
const EventTypeSessionCompleted = "session_completed"

// DefaultBackoff is the delay before the first retry. Each later retry
// doubles it.
const DefaultBackoff = 500 * time.Millisecond

// SessionCompletedEvent is the payload published when a session ends.
type SessionCompletedEvent struct {
	EventType     string  `json:"event_type"` // always "session_completed"
	SessionID     string  `json:"session_id"`
	ParticipantID string  `json:"participant_id,omitempty"`
	Experiment    string  `json:"experiment"`
	Outcome       string  `json:"outcome"` // finished, aborted, failed
	Message       string  `json:"message,omitempty"`
	QuitReason    *string `json:"quit_reason,omitempty"`
	TrialCount    int     `json:"trial_count"`
	StoragePath   string  `json:"storage_path"`
	Timestamp     string  `json:"timestamp"` // RFC 3339
	DurationMs    int64   `json:"duration_ms"`
	Version       string  `json:"version"`
}

// NewSessionCompletedEvent builds the notice of a finished session.
func NewSessionCompletedEvent(meta types.SessionMeta, outcome types.Outcome, storagePath string, at time.Time) *SessionCompletedEvent {
	ev := &SessionCompletedEvent{
		EventType:   EventTypeSessionCompleted,
		SessionID:   meta.SessionID,
		Experiment:  meta.Experiment,
		Outcome:     string(outcome.Status),
		Message:     outcome.Message,
		QuitReason:  outcome.QuitReason,
		TrialCount:  outcome.Trials,
		StoragePath: storagePath,
		Timestamp:   at.UTC().Format(time.RFC3339),
		DurationMs:  outcome.Duration.Milliseconds(),
		Version:     types.Version,
	}
	if meta.ParticipantID != nil {
		ev.ParticipantID = *meta.ParticipantID
	}
	return ev
}

// Adapter publishes session completion events to a downstream system.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retry calls attempt up to 1+retries times with exponential backoff
// between calls. It stops early when permanent reports the error as not
// worth retrying.
func Retry(ctx context.Context, name string, retries int, backoff time.Duration, attempt func(context.Context) error, permanent func(error) bool) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(wait):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
