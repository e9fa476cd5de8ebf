package types

import "time"

// RecordType discriminates ResultLog entries.
type RecordType string

const (
	RecordTypeTrial       RecordType = "trial"
	RecordTypeQuiz        RecordType = "quiz"
	RecordTypeCalibration RecordType = "calibration"
	RecordTypeDevice      RecordType = "device"
	RecordTypeQuit        RecordType = "quit-survey"
)

// QuizAnswerRepeat is recorded when the participant asks to read the instructions again.
const QuizAnswerRepeat = "read-again"

// Calibration methods.
const (
	CalibrationRuler = "ruler"
	CalibrationAuto  = "auto"
)

// Device connection outcomes.
const (
	DeviceConnected = "connected"
	DeviceSkipped   = "skipped"
	DeviceFailed    = "failed"
)

// Record is one append-only ResultLog entry. Fields not used by the
// record's type are left empty and omitted from the wire form.
type Record struct {
	Seq  int64      `json:"seq" yaml:"seq" msgpack:"seq"`
	Type RecordType `json:"trialType" yaml:"trialType" msgpack:"trialType"`
	TS   time.Time  `json:"ts" yaml:"ts" msgpack:"ts"`

	// Trial fields
	Half       *int      `json:"half,omitempty" yaml:"half,omitempty" msgpack:"half,omitempty"`
	Index      *int      `json:"index,omitempty" yaml:"index,omitempty" msgpack:"index,omitempty"`
	Category   Category  `json:"category,omitempty" yaml:"category,omitempty" msgpack:"category,omitempty"`
	Numerosity int       `json:"numerosity,omitempty" yaml:"numerosity,omitempty" msgpack:"numerosity,omitempty"`
	VariantID  *int      `json:"variantId,omitempty" yaml:"variantId,omitempty" msgpack:"variantId,omitempty"`
	Jitter     *float64  `json:"jitter,omitempty" yaml:"jitter,omitempty" msgpack:"jitter,omitempty"`
	Estimate   *int      `json:"estimate,omitempty" yaml:"estimate,omitempty" msgpack:"estimate,omitempty"`
	TrialStart time.Time `json:"trialStart,omitzero" yaml:"trialStart,omitempty" msgpack:"trialStart,omitempty"`

	// Quiz fields
	Answer  string `json:"answer,omitempty" yaml:"answer,omitempty" msgpack:"answer,omitempty"`
	Correct *bool  `json:"correct,omitempty" yaml:"correct,omitempty" msgpack:"correct,omitempty"`

	// Calibration fields
	Method      string  `json:"method,omitempty" yaml:"method,omitempty" msgpack:"method,omitempty"`
	ScaleFactor float64 `json:"scaleFactor,omitempty" yaml:"scaleFactor,omitempty" msgpack:"scaleFactor,omitempty"`
	ImageWidth  float64 `json:"imageWidth,omitempty" yaml:"imageWidth,omitempty" msgpack:"imageWidth,omitempty"`
	ImageHeight float64 `json:"imageHeight,omitempty" yaml:"imageHeight,omitempty" msgpack:"imageHeight,omitempty"`

	// Device fields
	DeviceOutcome string `json:"deviceOutcome,omitempty" yaml:"deviceOutcome,omitempty" msgpack:"deviceOutcome,omitempty"`
	Transport     string `json:"transport,omitempty" yaml:"transport,omitempty" msgpack:"transport,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`

	// Quit fields
	QuitReason *string `json:"quitReason,omitempty" yaml:"quitReason,omitempty" msgpack:"quitReason,omitempty"`
}

// NewTrialRecord builds the record of a completed trial.
func NewTrialRecord(spec TrialSpec, half, index, estimate int, start time.Time) *Record {
	variant := spec.Stimulus.VariantID
	jitter := spec.BlackscreenJitterMs
	return &Record{
		Type:       RecordTypeTrial,
		Half:       &half,
		Index:      &index,
		Category:   spec.Stimulus.Category,
		Numerosity: spec.Stimulus.Numerosity,
		VariantID:  &variant,
		Jitter:     &jitter,
		Estimate:   &estimate,
		TrialStart: start,
	}
}

// NewQuizRecord builds a comprehension quiz answer record.
func NewQuizRecord(half int, category Category, answer string, correct bool) *Record {
	return &Record{
		Type:     RecordTypeQuiz,
		Half:     &half,
		Category: category,
		Answer:   answer,
		Correct:  &correct,
	}
}

// NewQuitRecord builds the quit survey record.
func NewQuitRecord(reason string) *Record {
	return &Record{Type: RecordTypeQuit, QuitReason: &reason}
}

// ExperimentResult is the final payload handed to persistence.
type ExperimentResult struct {
	Settings Settings `json:"settings" yaml:"settings" msgpack:"settings"`
	RawData  RawData  `json:"rawData" yaml:"rawData" msgpack:"rawData"`
}

// RawData holds every record in log order.
type RawData struct {
	Trials []Record `json:"trials" yaml:"trials" msgpack:"trials"`
}

// TrialRecords returns only the trial records of the result.
func (r *ExperimentResult) TrialRecords() []Record {
	var out []Record
	for _, rec := range r.RawData.Trials {
		if rec.Type == RecordTypeTrial {
			out = append(out, rec)
		}
	}
	return out
}

// QuitRecord returns the quit survey record, if any.
func (r *ExperimentResult) QuitRecord() *Record {
	for i := len(r.RawData.Trials) - 1; i >= 0; i-- {
		if r.RawData.Trials[i].Type == RecordTypeQuit {
			return &r.RawData.Trials[i]
		}
	}
	return nil
}
