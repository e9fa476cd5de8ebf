package lode

import (
	"encoding/json"
	"fmt"

	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/types"
)

// Session file names under sessions/<session_id>/.
const (
	ResultFile  = "result.json"
	MetricsFile = "metrics.json"
)

// SessionDocument is the stored form of a finished session.
type SessionDocument struct {
	Meta    types.SessionMeta       `json:"meta"`
	Outcome types.Outcome           `json:"outcome"`
	Result  *types.ExperimentResult `json:"result"`
}

// MetricsDocument is the stored metrics snapshot of a session.
type MetricsDocument struct {
	SessionID   string           `json:"session_id"`
	CompletedAt string           `json:"completed_at"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// toRecordRow converts a record to the map form Lode's Hive layout needs,
// adding the partition keys.
func toRecordRow(rec *types.Record, cfg Config) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %d: %w", rec.Seq, err)
	}
	row := map[string]any{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("encode record %d: %w", rec.Seq, err)
	}
	row["experiment"] = cfg.Experiment
	row["day"] = cfg.Day
	row["session_id"] = cfg.SessionID
	row["record_type"] = string(rec.Type)
	return row, nil
}

// fromRecordRow reverses toRecordRow. Partition keys are ignored.
func fromRecordRow(item any) (types.Record, error) {
	var rec types.Record
	data, err := json.Marshal(item)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(data, &rec)
	return rec, err
}
