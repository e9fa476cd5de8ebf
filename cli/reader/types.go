// Package reader provides the read-side data access layer for the
// numerosity CLI.
//
// Read-only commands go through the Reader interface exclusively and never
// touch the session engine.
package reader

import (
	"time"

	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/types"
)

// ListSessionsOptions filters list sessions.
type ListSessionsOptions struct {
	Experiment string
	// Outcome keeps only sessions with this status; empty keeps all.
	Outcome string
	// Limit keeps the most recent N sessions; zero keeps all.
	Limit int
}

// ListSessionItem is one row of list sessions.
type ListSessionItem struct {
	SessionID     string    `json:"session_id" yaml:"session_id"`
	ParticipantID string    `json:"participant_id" yaml:"participant_id"`
	Experiment    string    `json:"experiment" yaml:"experiment"`
	Outcome       string    `json:"outcome" yaml:"outcome"`
	Trials        int       `json:"trials" yaml:"trials"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	DurationMs    int64     `json:"duration_ms" yaml:"duration_ms"`
}

// InspectSessionResponse describes one stored session.
type InspectSessionResponse struct {
	SessionID     string         `json:"session_id" yaml:"session_id"`
	ParticipantID string         `json:"participant_id" yaml:"participant_id"`
	Experiment    string         `json:"experiment" yaml:"experiment"`
	Seed          uint64         `json:"seed" yaml:"seed"`
	StartedAt     time.Time      `json:"started_at" yaml:"started_at"`
	Outcome       string         `json:"outcome" yaml:"outcome"`
	Message       string         `json:"message" yaml:"message"`
	QuitReason    *string        `json:"quit_reason" yaml:"quit_reason"`
	Trials        int            `json:"trials" yaml:"trials"`
	Order         []string       `json:"order" yaml:"order"`
	Settings      types.Settings `json:"settings" yaml:"settings"`
	// Source is "result" for a stored result, "records" when only the
	// streamed records of an interrupted process were found.
	Source  string            `json:"source" yaml:"source"`
	Cells   []EstimateCell    `json:"cells" yaml:"cells"`
	Metrics *metrics.Snapshot `json:"metrics" yaml:"metrics"`
	Records []types.Record    `json:"records,omitempty" yaml:"records,omitempty"`
}

// StatsOptions filters stats.
type StatsOptions struct {
	Experiment string
	// IncludeAborted also counts trials of aborted sessions.
	IncludeAborted bool
}

// EstimateStats summarizes estimates across sessions.
type EstimateStats struct {
	Sessions int            `json:"sessions" yaml:"sessions"`
	Trials   int            `json:"trials" yaml:"trials"`
	Cells    []EstimateCell `json:"cells" yaml:"cells"`
}

// EstimateCell summarizes the estimates of one category and numerosity.
type EstimateCell struct {
	Category     string  `json:"category" yaml:"category"`
	Numerosity   int     `json:"numerosity" yaml:"numerosity"`
	Count        int     `json:"count" yaml:"count"`
	MeanEstimate float64 `json:"mean_estimate" yaml:"mean_estimate"`
	MeanAbsError float64 `json:"mean_abs_error" yaml:"mean_abs_error"`
}
