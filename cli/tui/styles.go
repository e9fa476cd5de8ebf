// Package tui provides Bubble Tea components for the numerosity CLI: the
// participant front-end used by numerosity run, and read-only views of
// stored sessions (inspect, stats).
//
// The participant front-end only renders steps and forwards keys as
// events. Timing and flow stay with the session engine.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle for stat display boxes.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)

	// Participant screen styles.

	// FixationStyle renders the fixation cross.
	FixationStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))

	// StimulusStyle frames the stimulus placeholder.
	StimulusStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(highlightColor).
			Padding(1, 4).
			Align(lipgloss.Center)

	// ChoiceStyle and SelectedChoiceStyle render answer buttons.
	ChoiceStyle         = lipgloss.NewStyle().Foreground(mutedColor).PaddingLeft(2)
	SelectedChoiceStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).PaddingLeft(2)

	// NoticeStyle renders inline validation messages.
	NoticeStyle = lipgloss.NewStyle().Foreground(warningColor).Italic(true)

	// ProgressFillStyle and ProgressTrackStyle draw the progress bar.
	ProgressFillStyle  = lipgloss.NewStyle().Foreground(primaryColor)
	ProgressTrackStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// OutcomeStyle returns a style based on a session outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "finished":
		return SuccessStyle
	case "aborted", "incomplete":
		return WarningStyle
	case "failed":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
