package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// Read-only view types.
const (
	ViewInspectSession = "inspect_session"
	ViewStats          = "stats_estimates"
)

// Run starts the read-only view for viewType.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	var model tea.Model
	switch viewType {
	case ViewInspectSession:
		model = NewInspectModel(data)
	case ViewStats:
		model = NewStatsModel(data)
	}
	_, err := tea.NewProgram(model).Run()
	return err
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only inspect session and stats have a TUI.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspectSession, ViewStats}
}
