package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/moduleguide/internal/metrics"
)

var (
	reloadCountStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	reloadPathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// RenderReload renders live-reload activity: count, when, and what changed.
func RenderReload(snap metrics.Snapshot, width int) string {
	if snap.Reloads == 0 {
		return "  No reloads yet"
	}

	line := fmt.Sprintf("  Reloads: %s    Last: %s",
		reloadCountStyle.Render(formatCount(snap.Reloads)),
		snap.LastReload.Local().Format("15:04:05"))

	if len(snap.ReloadPaths) > 0 {
		paths := strings.Join(snap.ReloadPaths, ", ")
		line += "\n  " + reloadPathStyle.Render(truncate(paths, max(width-2, 10)))
	}
	return line
}
