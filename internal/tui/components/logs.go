package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/moduleguide/internal/metrics"
)

var (
	logTimeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	logComponentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	logLevelStyles    = map[string]lipgloss.Style{
		"info":  lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
		"warn":  lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		"error": lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")),
		"fatal": lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
	}
	logDefaultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// RenderLogs renders the last maxLines log entries, tagged with the
// emitting component when present.
func RenderLogs(entries []metrics.LogEntry, maxLines int) string {
	if len(entries) == 0 {
		return "  No log entries yet"
	}

	start := 0
	if len(entries) > maxLines {
		start = len(entries) - maxLines
	}

	lines := make([]string, 0, len(entries)-start)
	for _, e := range entries[start:] {
		style, ok := logLevelStyles[e.Level]
		if !ok {
			style = logDefaultStyle
		}
		lvl := style.Render(levelTag(e.Level))

		msg := e.Message
		if c := e.Component; c != "" {
			msg = logComponentStyle.Render(c) + " " + msg
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s", logTimeStyle.Render(e.Time.Format("15:04:05")), lvl, msg))
	}
	return strings.Join(lines, "\n")
}

func levelTag(level string) string {
	switch level {
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	case "fatal":
		return "FTL"
	case "trace":
		return "TRC"
	default:
		return "DBG"
	}
}
