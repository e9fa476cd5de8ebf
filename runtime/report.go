package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/types"
)

// SessionReport is the JSON report written by run --report.
type SessionReport struct {
	SessionID     string              `json:"session_id"`
	ParticipantID string              `json:"participant_id,omitempty"`
	Experiment    string              `json:"experiment"`
	Seed          uint64              `json:"seed"`
	Outcome       types.OutcomeStatus `json:"outcome"`
	Message       string              `json:"message"`
	QuitReason    *string             `json:"quit_reason,omitempty"`
	ExitCode      int                 `json:"exit_code"`
	DurationMs    int64               `json:"duration_ms"`
	TrialCount    int                 `json:"trial_count"`
	Order         []types.Category    `json:"order"`
	Transitions   []string            `json:"transitions"`

	Policy   *ReportPolicy     `json:"policy"`
	Triggers *ReportTriggers   `json:"triggers"`
	Metrics  *metrics.Snapshot `json:"metrics"`

	Stderr string `json:"stderr,omitempty"`
}

// ReportPolicy holds record policy stats in the report.
type ReportPolicy struct {
	Name             string           `json:"name"`
	RecordsReceived  int64            `json:"records_received"`
	RecordsPersisted int64            `json:"records_persisted"`
	Errors           int64            `json:"errors"`
	Flushes          int64            `json:"flushes"`
	FlushTriggers    map[string]int64 `json:"flush_triggers,omitempty"`
}

// ReportTriggers holds trigger dispatcher stats in the report.
type ReportTriggers struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
	Skipped int64 `json:"skipped"`
}

// BuildSessionReport composes a report from a session result.
// flushTriggers may be nil for policies that do not track them.
func BuildSessionReport(result *SessionResult, policyName string, flushTriggers map[string]int64, exitCode int) *SessionReport {
	report := &SessionReport{
		SessionID:  result.Meta.SessionID,
		Experiment: result.Meta.Experiment,
		Seed:       result.Meta.Seed,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		QuitReason: result.Outcome.QuitReason,
		ExitCode:   exitCode,
		DurationMs: result.Duration.Milliseconds(),
		TrialCount: result.Outcome.Trials,
		Order:      []types.Category{result.Order[0], result.Order[1]},
		Policy: &ReportPolicy{
			Name:             policyName,
			RecordsReceived:  result.PolicyStats.TotalRecords,
			RecordsPersisted: result.PolicyStats.RecordsPersisted,
			Errors:           result.PolicyStats.Errors,
			Flushes:          result.PolicyStats.FlushCount,
			FlushTriggers:    flushTriggers,
		},
		Triggers: &ReportTriggers{
			Sent:    result.TriggerStats.Sent,
			Failed:  result.TriggerStats.Failed,
			Dropped: result.TriggerStats.Dropped,
			Skipped: result.TriggerStats.Skipped,
		},
		Metrics: &result.Metrics,
	}
	if result.Meta.ParticipantID != nil {
		report.ParticipantID = *result.Meta.ParticipantID
	}
	for _, tr := range result.History {
		report.Transitions = append(report.Transitions, tr.To.String())
	}
	return report
}

// WriteSessionReport writes the report as JSON to path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeSessionReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
