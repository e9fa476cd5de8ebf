package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/types"
)

type recorder struct {
	events []timeline.Event
}

func (r *recorder) emit(ev timeline.Event) { r.events = append(r.events, ev) }

func (r *recorder) last(t *testing.T) timeline.Event {
	t.Helper()
	if len(r.events) == 0 {
		t.Fatal("no event emitted")
	}
	return r.events[len(r.events)-1]
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	right = tea.KeyMsg{Type: tea.KeyRight}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	ctrlQ = tea.KeyMsg{Type: tea.KeyCtrlQ}
	ctrlA = tea.KeyMsg{Type: tea.KeyCtrlA}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drive shows step then feeds msgs, returning the final model.
func drive(m tea.Model, step timeline.Step, msgs ...tea.Msg) tea.Model {
	m, _ = m.Update(stepMsg{step: step})
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func TestParticipant_EstimateAcceptsDigitsOnly(t *testing.T) {
	rec := &recorder{}
	step := timeline.Step{ID: "h0-t01-estimate", Kind: timeline.KindEstimate, Text: "How many?",
		Input: &timeline.InputSpec{Numeric: true, Required: true}}
	drive(NewParticipantModel(rec.emit), step, runes("1"), runes("a"), runes("-"), runes("2"), enter)

	ev := rec.last(t)
	if ev.Kind != timeline.EventSubmit || ev.Value != "12" || ev.StepID != step.ID {
		t.Errorf("event = %+v", ev)
	}
}

func TestParticipant_QuizRepeatIsLastEntry(t *testing.T) {
	step := timeline.Step{ID: "quiz-3", Kind: timeline.KindQuiz, Choices: []string{"a", "b", "c"}, RepeatLabel: "read again"}

	rec := &recorder{}
	drive(NewParticipantModel(rec.emit), step, down, down, enter)
	if ev := rec.last(t); ev.Kind != timeline.EventChoice || ev.Choice != 2 {
		t.Errorf("third choice = %+v", ev)
	}

	rec = &recorder{}
	drive(NewParticipantModel(rec.emit), step, down, down, down, down, enter)
	if ev := rec.last(t); ev.Kind != timeline.EventRepeat {
		t.Errorf("repeat = %+v", ev)
	}
}

func TestParticipant_InstructionPages(t *testing.T) {
	rec := &recorder{}
	step := timeline.Step{ID: "instructions-1", Kind: timeline.KindInstructions, Pages: []string{"p1", "p2", "p3"}, Choices: []string{"Continue"}}

	m := drive(NewParticipantModel(rec.emit), step, enter, right)
	if len(rec.events) != 0 {
		t.Fatalf("event before last page: %+v", rec.events)
	}
	if !strings.Contains(m.View(), "p3") {
		t.Error("third page not shown")
	}
	m, _ = m.Update(enter)
	if ev := rec.last(t); ev.Kind != timeline.EventChoice || ev.Choice != 0 {
		t.Errorf("event = %+v", ev)
	}
}

func TestParticipant_InterruptAndQuitSurvey(t *testing.T) {
	rec := &recorder{}
	m := drive(NewParticipantModel(rec.emit), timeline.Step{ID: "h0-t01-stimulus", Kind: timeline.KindStimulus,
		Stimulus: &types.StimulusRef{Category: types.CategoryPeople, Numerosity: 6, VariantID: 3}}, ctrlQ)
	if ev := rec.last(t); ev.Kind != timeline.EventQuit {
		t.Fatalf("event = %+v", ev)
	}

	survey := timeline.Step{ID: "quit-9", Kind: timeline.KindQuitSurvey, Choices: []string{"r0", "r1", "r2", "r3"}, CloseLabel: "Close", ConfirmLabel: "Quit"}
	m = drive(m, survey, down, enter)
	if ev := rec.last(t); ev.Kind != timeline.EventQuitConfirm || ev.Choice != 1 || ev.StepID != "quit-9" {
		t.Errorf("confirm = %+v", ev)
	}

	drive(m, survey, esc)
	if ev := rec.last(t); ev.Kind != timeline.EventQuitClose {
		t.Errorf("close = %+v", ev)
	}
}

func TestParticipant_Calibration(t *testing.T) {
	step := timeline.Step{ID: "calibration-4", Kind: timeline.KindCalibration,
		Input: &timeline.InputSpec{Label: "cm", Required: true}, AutoLabel: "auto"}

	rec := &recorder{}
	drive(NewParticipantModel(rec.emit), step, runes("9"), runes(","), runes("5"), enter)
	ev := rec.last(t)
	if ev.Kind != timeline.EventCalibrate || ev.Method != types.CalibrationRuler || ev.Value != "9,5" {
		t.Errorf("ruler = %+v", ev)
	}

	rec = &recorder{}
	drive(NewParticipantModel(rec.emit), step, ctrlA)
	ev = rec.last(t)
	if ev.Method != types.CalibrationAuto || ev.ScaleFactor != 1 {
		t.Errorf("auto = %+v", ev)
	}
}

func TestParticipant_TimedStepsIgnoreKeys(t *testing.T) {
	rec := &recorder{}
	m := drive(NewParticipantModel(rec.emit), timeline.Step{ID: "f", Kind: timeline.KindFixation, Text: "+"}, enter, runes("5"))
	if len(rec.events) != 0 {
		t.Errorf("events = %+v", rec.events)
	}
	if !strings.Contains(m.View(), "+") {
		t.Error("fixation cross missing")
	}
}

func TestRenderStimulus_DotCount(t *testing.T) {
	for n := 5; n <= 8; n++ {
		for v := 1; v <= 10; v++ {
			out := renderStimulus(timeline.Step{Stimulus: &types.StimulusRef{Category: types.CategoryObjects, Numerosity: n, VariantID: v}})
			if got := strings.Count(out, "●"); got != n {
				t.Fatalf("numerosity %d variant %d: %d dots", n, v, got)
			}
		}
	}
}

func TestRenderProgress(t *testing.T) {
	tests := []struct {
		p    float64
		fill int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.7, 10},
		{-1, 0},
	}
	for _, tt := range tests {
		out := renderProgress(tt.p, 10)
		if got := strings.Count(out, "█"); got != tt.fill {
			t.Errorf("renderProgress(%v) fill = %d, want %d", tt.p, got, tt.fill)
		}
		if got := strings.Count(out, "░"); got != 10-tt.fill {
			t.Errorf("renderProgress(%v) track = %d", tt.p, got)
		}
	}
}
