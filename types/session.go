package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionMeta identifies one participant session.
type SessionMeta struct {
	// SessionID is a UUIDv4 assigned at session start.
	SessionID string `json:"session_id" yaml:"session_id" msgpack:"session_id"`
	// ParticipantID is an optional operator-supplied participant code.
	ParticipantID *string `json:"participant_id,omitempty" yaml:"participant_id,omitempty" msgpack:"participant_id,omitempty"`
	// Experiment is the dataset partition name.
	Experiment string `json:"experiment" yaml:"experiment" msgpack:"experiment"`
	// Seed drives every random draw of the session.
	Seed uint64 `json:"seed" yaml:"seed" msgpack:"seed"`
	// StartedAt is the wall-clock start time.
	StartedAt time.Time `json:"started_at" yaml:"started_at" msgpack:"started_at"`
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Validate checks the session identity.
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id is required")
	}
	if _, err := uuid.Parse(m.SessionID); err != nil {
		return errors.New("session_id must be a UUID")
	}
	if m.Experiment == "" {
		return errors.New("experiment is required")
	}
	if m.ParticipantID != nil && *m.ParticipantID == "" {
		return errors.New("participant_id must be non-empty when set")
	}
	return nil
}

// OutcomeStatus is the terminal status of a session.
type OutcomeStatus string

const (
	// OutcomeFinished means every trial of both halves completed.
	OutcomeFinished OutcomeStatus = "finished"
	// OutcomeAborted means the participant confirmed the quit survey.
	OutcomeAborted OutcomeStatus = "aborted"
	// OutcomeFailed means the session could not run (configuration, front-end or storage error).
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome describes how a session ended.
type Outcome struct {
	Status     OutcomeStatus `json:"status" yaml:"status" msgpack:"status"`
	Message    string        `json:"message" yaml:"message" msgpack:"message"`
	QuitReason *string       `json:"quit_reason,omitempty" yaml:"quit_reason,omitempty" msgpack:"quit_reason,omitempty"`
	Trials     int           `json:"trials" yaml:"trials" msgpack:"trials"`
	Duration   time.Duration `json:"duration" yaml:"duration" msgpack:"duration"`
}
