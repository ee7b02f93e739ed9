package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/moduleguide/internal/metrics"
)

var (
	routeHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	routeHitStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	routeIdleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	routeRedirectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	routeMissStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// RenderRoutes renders the route table with per-route hit counts.
func RenderRoutes(snap metrics.Snapshot, width, maxRows int) string {
	if len(snap.Routes) == 0 {
		return "  No routes registered"
	}

	var b strings.Builder

	header := fmt.Sprintf("  %-24s %-12s %-20s %8s  %s", "Pattern", "Name", "Target", "Hits", "Last")
	b.WriteString(routeHeaderStyle.Render(header))
	b.WriteByte('\n')

	shown := len(snap.Routes)
	if maxRows > 0 && shown > maxRows {
		shown = maxRows
	}

	for i := 0; i < shown; i++ {
		r := snap.Routes[i]

		target := truncate(r.Target, 20)
		style := routeIdleStyle
		if r.Redirect != "" {
			target = truncate("→ "+r.Redirect, 20)
			style = routeRedirectStyle
		} else if r.Hits > 0 {
			style = routeHitStyle
		}

		last := "-"
		if !r.LastHit.IsZero() {
			last = r.LastHit.Local().Format("15:04:05")
		}

		line := fmt.Sprintf("  %-24s %-12s %-20s %8s  %s",
			truncate(r.Pattern, 24), truncate(r.Name, 12), target, formatCount(r.Hits), last)
		b.WriteString(style.Render(line))
		if i < shown-1 {
			b.WriteByte('\n')
		}
	}

	if len(snap.Routes) > shown {
		b.WriteString(fmt.Sprintf("\n  ... and %d more routes", len(snap.Routes)-shown))
	}

	if snap.UnmatchedCount > 0 {
		b.WriteByte('\n')
		b.WriteString(routeMissStyle.Render(fmt.Sprintf("  Unmatched: %s (last %s)",
			formatCount(snap.UnmatchedCount), snap.LastUnmatched)))
	}

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
