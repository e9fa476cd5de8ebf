package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/numlab/numerosity/cli/reader"
)

// StatsModel is a Bubble Tea model for estimate statistics.
type StatsModel struct {
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(data any) StatsModel {
	return StatsModel{data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return m.renderStats() + "\n" + help
}

func (m StatsModel) renderStats() string {
	data, ok := m.data.(*reader.EstimateStats)
	if !ok {
		return "Invalid data type for stats_estimates"
	}

	boxes := lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Sessions", data.Sessions),
		statBox("Trials", data.Trials),
		statBox("Cells", len(data.Cells)),
	)
	title := TitleStyle.Render("Estimate Statistics")
	if len(data.Cells) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, boxes, HelpStyle.Render("(no trials)"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, boxes, renderCells(data.Cells))
}

func statBox(label string, value int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		StatValueStyle.Render(fmt.Sprintf("%d", value)),
		StatLabelStyle.Render(label),
	)
	return StatBoxStyle.Render(content)
}
