// Package timeline defines the boundary between the session engine and the
// screen that presents it.
//
// The engine describes each screen as a Step and waits for participant
// input as Events. A Frontend renders steps and produces events; it never
// decides flow.
package timeline

import (
	"time"

	"github.com/numlab/numerosity/types"
)

// StepKind identifies how a step is rendered.
type StepKind string

const (
	KindBlank        StepKind = "blank"
	KindFixation     StepKind = "fixation"
	KindStimulus     StepKind = "stimulus"
	KindEstimate     StepKind = "estimate"
	KindMessage      StepKind = "message"
	KindInstructions StepKind = "instructions"
	KindQuiz         StepKind = "quiz"
	KindConnect      StepKind = "connect"
	KindCalibration  StepKind = "calibration"
	KindQuitSurvey   StepKind = "quit_survey"
	KindEnd          StepKind = "end"
)

// Timed reports whether steps of this kind end on a timer.
func (k StepKind) Timed() bool {
	switch k {
	case KindBlank, KindFixation, KindStimulus:
		return true
	}
	return false
}

// InputSpec describes a free-text input field.
type InputSpec struct {
	Label    string `msgpack:"label" json:"label"`
	Required bool   `msgpack:"required" json:"required"`
	// Min is the smallest accepted value for numeric input.
	Min *int `msgpack:"min,omitempty" json:"min,omitempty"`
	// Numeric restricts input to digits.
	Numeric bool `msgpack:"numeric" json:"numeric"`
}

// Step is one screen.
type Step struct {
	ID    string   `msgpack:"id" json:"id"`
	Kind  StepKind `msgpack:"kind" json:"kind"`
	Title string   `msgpack:"title,omitempty" json:"title,omitempty"`
	Text  string   `msgpack:"text,omitempty" json:"text,omitempty"`
	// Pages are shown one at a time with next/previous navigation.
	Pages []string `msgpack:"pages,omitempty" json:"pages,omitempty"`
	// Choices are answer buttons; events report the chosen index.
	Choices []string `msgpack:"choices,omitempty" json:"choices,omitempty"`
	// RepeatLabel, when set, offers the distinguished repeat action.
	RepeatLabel string `msgpack:"repeat_label,omitempty" json:"repeat_label,omitempty"`
	// AutoLabel, when set, offers automatic calibration.
	AutoLabel string `msgpack:"auto_label,omitempty" json:"auto_label,omitempty"`
	// CloseLabel and ConfirmLabel label the quit survey actions.
	CloseLabel   string `msgpack:"close_label,omitempty" json:"close_label,omitempty"`
	ConfirmLabel string `msgpack:"confirm_label,omitempty" json:"confirm_label,omitempty"`

	Stimulus    *types.StimulusRef `msgpack:"stimulus,omitempty" json:"stimulus,omitempty"`
	ImagePath   string             `msgpack:"image_path,omitempty" json:"image_path,omitempty"`
	ImageWidth  float64            `msgpack:"image_width,omitempty" json:"image_width,omitempty"`
	ImageHeight float64            `msgpack:"image_height,omitempty" json:"image_height,omitempty"`

	// Duration is informational for timed steps; the engine owns the timer.
	Duration time.Duration `msgpack:"duration,omitempty" json:"duration,omitempty"`
	Input    *InputSpec    `msgpack:"input,omitempty" json:"input,omitempty"`
	// Notice is an inline validation or retry message.
	Notice   string  `msgpack:"notice,omitempty" json:"notice,omitempty"`
	Progress float64 `msgpack:"progress" json:"progress"`
}

// EventKind identifies participant input.
type EventKind string

const (
	// EventChoice selects Choices[Choice].
	EventChoice EventKind = "choice"
	// EventSubmit submits Value from the input field.
	EventSubmit EventKind = "submit"
	// EventRepeat is the quiz "read again" action.
	EventRepeat EventKind = "repeat"
	// EventCalibrate completes calibration: Value holds the ruler length in
	// cm, or ScaleFactor the automatic scale when Method is "auto".
	EventCalibrate EventKind = "calibrate"
	// EventQuit asks to interrupt the session. Valid on any step.
	EventQuit EventKind = "quit"
	// EventQuitClose closes the quit survey and resumes.
	EventQuitClose EventKind = "quit_close"
	// EventQuitConfirm confirms quitting with reason index Choice.
	EventQuitConfirm EventKind = "quit_confirm"
)

// Event is one participant input.
type Event struct {
	Kind        EventKind `msgpack:"kind" json:"kind"`
	StepID      string    `msgpack:"step_id" json:"step_id"`
	Choice      int       `msgpack:"choice" json:"choice"`
	Value       string    `msgpack:"value,omitempty" json:"value,omitempty"`
	Method      string    `msgpack:"method,omitempty" json:"method,omitempty"`
	ScaleFactor float64   `msgpack:"scale_factor,omitempty" json:"scale_factor,omitempty"`
}
