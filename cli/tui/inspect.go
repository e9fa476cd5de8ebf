package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/numlab/numerosity/cli/reader"
)

// InspectModel is a Bubble Tea model for a stored session.
type InspectModel struct {
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(data any) InspectModel {
	return InspectModel{data: data}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return m.renderSession() + "\n" + help
}

func (m InspectModel) renderSession() string {
	data, ok := m.data.(*reader.InspectSessionResponse)
	if !ok {
		return "Invalid data type for inspect_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Session ID", data.SessionID},
		{"Experiment", data.Experiment},
		{"Outcome", data.Outcome},
		{"Trials", fmt.Sprintf("%d", data.Trials)},
		{"Order", strings.Join(data.Order, " → ")},
		{"Seed", fmt.Sprintf("%d", data.Seed)},
		{"Source", data.Source},
	}
	if data.ParticipantID != "" {
		rows = append(rows, []string{"Participant", data.ParticipantID})
	}
	if !data.StartedAt.IsZero() {
		rows = append(rows, []string{"Started At", data.StartedAt.Format("2006-01-02 15:04:05")})
	}
	if data.QuitReason != nil {
		rows = append(rows, []string{"Quit Reason", *data.QuitReason})
	}
	if data.Message != "" {
		rows = append(rows, []string{"Message", data.Message})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "Outcome" {
			value = OutcomeStyle(data.Outcome).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	details := BoxStyle.Render(b.String())
	if len(data.Cells) == 0 {
		return details
	}
	return lipgloss.JoinVertical(lipgloss.Left, details, renderCells(data.Cells))
}

// renderCells draws an estimate table, one row per category and numerosity.
func renderCells(cells []reader.EstimateCell) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Estimates"))
	b.WriteString("\n")
	header := fmt.Sprintf("%-10s %5s %6s %8s %8s", "category", "n", "count", "mean", "abs err")
	b.WriteString(LabelStyle.Width(0).Render(header))
	b.WriteString("\n")
	for _, c := range cells {
		line := fmt.Sprintf("%-10s %5d %6d %8.2f %8.2f", c.Category, c.Numerosity, c.Count, c.MeanEstimate, c.MeanAbsError)
		b.WriteString(ValueStyle.Render(line))
		b.WriteString("\n")
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
