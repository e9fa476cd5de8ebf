package flow

import (
	"fmt"

	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/types"
)

// CorrectQuizChoice is the index of the right comprehension quiz answer.
const CorrectQuizChoice = 2

// quitReasons are the quit survey option keys; the recorded reason is the index.
var quitReasons = []string{"quit.reason1", "quit.reason2", "quit.reason3", "quit.reason4"}

func (c *Controller) stepID(name string) string {
	c.steps++
	return fmt.Sprintf("%s-%d", name, c.steps)
}

func (c *Controller) categoryLabel() string {
	return c.texts.T("category." + string(c.order[c.half]))
}

func (c *Controller) connectStep(failed error) timeline.Step {
	t := c.texts
	step := timeline.Step{
		ID:    c.stepID("connect"),
		Kind:  timeline.KindConnect,
		Title: t.T("connect.title"),
		Text:  t.T("connect.text"),
	}
	label := t.T("connect.button")
	if failed != nil {
		label = t.T("connect.retry")
		step.Notice = t.T("connect.failed", failed.Error())
	}
	step.Choices = []string{label}
	if !c.settings.Configuration.ForceDevice {
		step.Choices = append(step.Choices, t.T("connect.skip"))
	}
	return step
}

func (c *Controller) instructionsStep() timeline.Step {
	t := c.texts
	cat := c.categoryLabel()
	return timeline.Step{
		ID:   c.stepID("instructions"),
		Kind: timeline.KindInstructions,
		Pages: []string{
			t.T("instructions.page1", cat),
			t.T("instructions.page2"),
			t.T("instructions.page3"),
			t.T("instructions.page4", cat),
			t.T("instructions.page5"),
			t.T("instructions.page6"),
		},
		Choices:  []string{t.T("continue")},
		Progress: c.progress.Value(),
	}
}

func (c *Controller) quizStep() timeline.Step {
	t := c.texts
	return timeline.Step{
		ID:   c.stepID("quiz"),
		Kind: timeline.KindQuiz,
		Text: t.T("quiz.question"),
		Choices: []string{
			t.T("quiz.option1"),
			t.T("quiz.option2"),
			t.T("quiz.option3", c.categoryLabel()),
		},
		RepeatLabel: t.T("quiz.repeat"),
		Progress:    c.progress.Value(),
	}
}

func (c *Controller) messageStep(name, text, button string) timeline.Step {
	return timeline.Step{
		ID:       c.stepID(name),
		Kind:     timeline.KindMessage,
		Text:     text,
		Choices:  []string{button},
		Progress: c.progress.Value(),
	}
}

func (c *Controller) calibrationStep(notice string) timeline.Step {
	t := c.texts
	return timeline.Step{
		ID:    c.stepID("calibration"),
		Kind:  timeline.KindCalibration,
		Title: t.T("calibration.title"),
		Text:  t.T("calibration.text"),
		Input: &timeline.InputSpec{
			Label:    t.T("calibration.ruler_label"),
			Required: true,
		},
		AutoLabel: t.T("calibration.auto"),
		Notice:    notice,
	}
}

func (c *Controller) quitStep(notice string) timeline.Step {
	t := c.texts
	choices := make([]string, len(quitReasons))
	for i, key := range quitReasons {
		choices[i] = t.T(key)
	}
	return timeline.Step{
		ID:           c.stepID("quit"),
		Kind:         timeline.KindQuitSurvey,
		Title:        t.T("quit.title"),
		Text:         t.T("quit.question"),
		Choices:      choices,
		CloseLabel:   t.T("quit.close"),
		ConfirmLabel: t.T("quit.confirm"),
		Notice:       notice,
	}
}

func (c *Controller) endStep(status types.OutcomeStatus) timeline.Step {
	key := "end.finished"
	if status != types.OutcomeFinished {
		key = "end.aborted"
	}
	return timeline.Step{
		ID:       c.stepID("end"),
		Kind:     timeline.KindEnd,
		Text:     c.texts.T(key),
		Progress: c.progress.Value(),
	}
}
