package tui

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/types"
)

// stepMsg delivers a step from the engine to the program.
type stepMsg struct {
	step timeline.Step
}

// stimulusGrid is the dot layout of the terminal stimulus stand-in.
const (
	gridCols = 5
	gridRows = 3
)

const progressWidth = 30

// ParticipantModel renders engine steps and turns keys into events.
type ParticipantModel struct {
	emit func(timeline.Event)

	step   timeline.Step
	shown  bool
	page   int
	cursor int
	input  textinput.Model

	width  int
	height int
}

// NewParticipantModel creates a model that reports input through emit.
func NewParticipantModel(emit func(timeline.Event)) ParticipantModel {
	ti := textinput.New()
	ti.CharLimit = 8
	ti.Prompt = "> "
	return ParticipantModel{emit: emit, input: ti}
}

// Init implements tea.Model.
func (m ParticipantModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ParticipantModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stepMsg:
		return m.enter(msg.step)

	case tea.KeyMsg:
		if !m.shown {
			return m, nil
		}
		if key.Matches(msg, keys.Interrupt) && m.step.Kind != timeline.KindQuitSurvey {
			m.send(timeline.Event{Kind: timeline.EventQuit})
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// enter resets per-step state for a new step.
func (m ParticipantModel) enter(step timeline.Step) (tea.Model, tea.Cmd) {
	m.step = step
	m.shown = true
	m.page = 0
	m.cursor = 0
	m.input.Reset()
	m.input.Blur()
	m.input.Placeholder = ""
	if step.Input != nil {
		m.input.Placeholder = step.Input.Label
		return m, m.input.Focus()
	}
	return m, nil
}

func (m ParticipantModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step.Kind {
	case timeline.KindEstimate:
		return m.handleInput(msg, func(v string) timeline.Event {
			return timeline.Event{Kind: timeline.EventSubmit, Value: v}
		})

	case timeline.KindCalibration:
		if key.Matches(msg, keys.Auto) && m.step.AutoLabel != "" {
			// A terminal has no device pixel ratio; the IPC renderer
			// reports the real one.
			m.send(timeline.Event{Kind: timeline.EventCalibrate, Method: types.CalibrationAuto, ScaleFactor: 1})
			return m, nil
		}
		return m.handleInput(msg, func(v string) timeline.Event {
			return timeline.Event{Kind: timeline.EventCalibrate, Method: types.CalibrationRuler, Value: v}
		})

	case timeline.KindInstructions:
		last := len(m.step.Pages) - 1
		switch {
		case key.Matches(msg, keys.PrevPage):
			if m.page > 0 {
				m.page--
			}
		case key.Matches(msg, keys.NextPage):
			if m.page < last {
				m.page++
			}
		case key.Matches(msg, keys.Select):
			if m.page < last {
				m.page++
				return m, nil
			}
			m.send(timeline.Event{Kind: timeline.EventChoice, Choice: 0})
		}
		return m, nil

	case timeline.KindQuiz:
		n := len(m.step.Choices)
		if m.step.RepeatLabel != "" {
			n++
		}
		if m.moveCursor(msg, n) {
			return m, nil
		}
		if key.Matches(msg, keys.Select) {
			if m.cursor == len(m.step.Choices) {
				m.send(timeline.Event{Kind: timeline.EventRepeat})
			} else {
				m.send(timeline.Event{Kind: timeline.EventChoice, Choice: m.cursor})
			}
		}
		return m, nil

	case timeline.KindQuitSurvey:
		if m.moveCursor(msg, len(m.step.Choices)) {
			return m, nil
		}
		switch {
		case key.Matches(msg, keys.Back):
			m.send(timeline.Event{Kind: timeline.EventQuitClose})
		case key.Matches(msg, keys.Select):
			m.send(timeline.Event{Kind: timeline.EventQuitConfirm, Choice: m.cursor})
		}
		return m, nil

	case timeline.KindConnect, timeline.KindMessage:
		if m.moveCursor(msg, len(m.step.Choices)) {
			return m, nil
		}
		if key.Matches(msg, keys.Select) && len(m.step.Choices) > 0 {
			m.send(timeline.Event{Kind: timeline.EventChoice, Choice: m.cursor})
		}
		return m, nil
	}
	// Timed steps and the end screen take no input.
	return m, nil
}

// handleInput feeds keys to the text field. Numeric fields drop anything
// but digits; the engine still validates the submitted value.
func (m ParticipantModel) handleInput(msg tea.KeyMsg, submit func(string) timeline.Event) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Select) {
		m.send(submit(strings.TrimSpace(m.input.Value())))
		return m, nil
	}
	if msg.Type == tea.KeyRunes && !m.acceptRunes(msg.Runes) {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ParticipantModel) acceptRunes(runes []rune) bool {
	numeric := m.step.Input != nil && m.step.Input.Numeric
	for _, r := range runes {
		if unicode.IsDigit(r) {
			continue
		}
		if !numeric && (r == '.' || r == ',') {
			continue
		}
		return false
	}
	return true
}

// moveCursor applies up/down within n entries and reports whether the key
// was a cursor key.
func (m *ParticipantModel) moveCursor(msg tea.KeyMsg, n int) bool {
	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return true
	case key.Matches(msg, keys.Down):
		if m.cursor < n-1 {
			m.cursor++
		}
		return true
	}
	return false
}

func (m ParticipantModel) send(ev timeline.Event) {
	if ev.StepID == "" {
		ev.StepID = m.step.ID
	}
	if m.emit != nil {
		m.emit(ev)
	}
}

// View implements tea.Model.
func (m ParticipantModel) View() string {
	if !m.shown {
		return ""
	}
	body := m.renderStep()
	if m.step.Kind != timeline.KindBlank && m.step.Kind != timeline.KindFixation && m.step.Kind != timeline.KindStimulus {
		body = lipgloss.JoinVertical(lipgloss.Left, body, renderProgress(m.step.Progress, progressWidth))
	}
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	return body
}

func (m ParticipantModel) renderStep() string {
	s := m.step
	var b strings.Builder
	if s.Title != "" {
		b.WriteString(TitleStyle.Render(s.Title))
		b.WriteString("\n")
	}

	switch s.Kind {
	case timeline.KindBlank:
		return ""
	case timeline.KindFixation:
		return FixationStyle.Render(s.Text)
	case timeline.KindStimulus:
		return renderStimulus(s)
	case timeline.KindInstructions:
		if len(s.Pages) > 0 {
			b.WriteString(s.Pages[m.page])
			b.WriteString("\n\n")
			b.WriteString(HelpStyle.Render(fmt.Sprintf("%d/%d  ← →", m.page+1, len(s.Pages))))
			if m.page == len(s.Pages)-1 && len(s.Choices) > 0 {
				b.WriteString("\n")
				b.WriteString(SelectedChoiceStyle.Render("[ " + s.Choices[0] + " ]"))
			}
		}
	case timeline.KindEstimate, timeline.KindCalibration:
		b.WriteString(s.Text)
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		if s.AutoLabel != "" {
			b.WriteString("\n")
			b.WriteString(HelpStyle.Render("ctrl+a: " + s.AutoLabel))
		}
	case timeline.KindQuiz:
		b.WriteString(s.Text)
		b.WriteString("\n\n")
		options := s.Choices
		if s.RepeatLabel != "" {
			options = append(append([]string(nil), s.Choices...), s.RepeatLabel)
		}
		b.WriteString(renderChoices(options, m.cursor))
	case timeline.KindQuitSurvey:
		b.WriteString(s.Text)
		b.WriteString("\n\n")
		b.WriteString(renderChoices(s.Choices, m.cursor))
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render(fmt.Sprintf("enter: %s   esc: %s", s.ConfirmLabel, s.CloseLabel)))
	default:
		b.WriteString(s.Text)
		if len(s.Choices) > 0 {
			b.WriteString("\n\n")
			b.WriteString(renderChoices(s.Choices, m.cursor))
		}
	}

	if s.Notice != "" {
		b.WriteString("\n")
		b.WriteString(NoticeStyle.Render(s.Notice))
	}
	return BoxStyle.Render(b.String())
}

func renderChoices(choices []string, cursor int) string {
	lines := make([]string, len(choices))
	for i, c := range choices {
		if i == cursor {
			lines[i] = SelectedChoiceStyle.Render("› " + c)
		} else {
			lines[i] = ChoiceStyle.Render("  " + c)
		}
	}
	return strings.Join(lines, "\n")
}

// renderStimulus draws the stimulus numerosity as dots on a small grid.
// The variant picks the layout; the image path is shown for the operator.
func renderStimulus(s timeline.Step) string {
	if s.Stimulus == nil {
		return StimulusStyle.Render(s.ImagePath)
	}
	cells := make([]string, gridCols*gridRows)
	for i := range cells {
		cells[i] = " "
	}
	// 7 is coprime with 15, so the first n positions are distinct.
	for i := 0; i < s.Stimulus.Numerosity && i < len(cells); i++ {
		cells[(i*7+s.Stimulus.VariantID*3)%len(cells)] = "●"
	}
	var rows []string
	for r := 0; r < gridRows; r++ {
		rows = append(rows, strings.Join(cells[r*gridCols:(r+1)*gridCols], "  "))
	}
	grid := StimulusStyle.Render(strings.Join(rows, "\n"))
	return lipgloss.JoinVertical(lipgloss.Center, grid, HelpStyle.Render(s.ImagePath))
}

func renderProgress(p float64, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	fill := int(p * float64(width))
	return ProgressFillStyle.Render(strings.Repeat("█", fill)) +
		ProgressTrackStyle.Render(strings.Repeat("░", width-fill))
}
