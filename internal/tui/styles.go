package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorDanger  = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorBorder  = lipgloss.Color("#374151") // Border gray

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)
