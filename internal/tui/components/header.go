package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/moduleguide/internal/metrics"
)

var (
	headerPhaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	headerValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
)

// RenderHeader renders the top status bar with phase, elapsed, proxy target
// and connected live-reload clients.
func RenderHeader(snap metrics.Snapshot, width int) string {
	phase := snap.Phase
	if phase == "" {
		phase = "idle"
	}
	left := fmt.Sprintf("  Phase: %s    Up: %s",
		headerPhaseStyle.Render(strings.ToUpper(phase)),
		headerValueStyle.Render(formatDuration(snap.ElapsedSec)))

	target := snap.ProxyTarget
	if target == "" {
		target = "off"
	}
	right := fmt.Sprintf("Proxy: %s    Clients: %s  ",
		headerValueStyle.Render(target),
		headerValueStyle.Render(fmt.Sprintf("%d", snap.Clients)))

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return left + strings.Repeat(" ", gap) + right
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
