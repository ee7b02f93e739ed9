package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/moduleguide/internal/metrics"
)

const sparklineChars = "▁▂▃▄▅▆▇█"

var (
	proxyValueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	proxyErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	sparkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// RenderProxy renders the proxy counters.
func RenderProxy(snap metrics.Snapshot, width int) string {
	if snap.ProxyTarget == "" {
		return "  Proxy disabled"
	}

	line := fmt.Sprintf("  Proxied: %s  |  %s  |  %s",
		proxyValueStyle.Render(formatCount(snap.ProxyRequests)),
		proxyValueStyle.Render(fmt.Sprintf("%.1f req/s", snap.ProxyPerSec)),
		proxyValueStyle.Render(formatBytes(snap.ProxyBytes)))

	if snap.ProxyErrors > 0 {
		line += fmt.Sprintf("  |  Errors: %s", proxyErrStyle.Render(formatCount(snap.ProxyErrors)))
		if snap.LastProxyError != "" {
			line += "\n  " + proxyErrStyle.Render(truncate(snap.LastProxyError, max(width-2, 10)))
		}
	}
	return line
}

// RateHistory keeps a rolling window of proxy request rates.
type RateHistory struct {
	values []float64
	cap    int
}

// NewRateHistory creates a history buffer with the given capacity.
func NewRateHistory(cap int) *RateHistory {
	return &RateHistory{
		values: make([]float64, 0, cap),
		cap:    cap,
	}
}

// Push adds a new rate sample.
func (h *RateHistory) Push(v float64) {
	if len(h.values) >= h.cap {
		copy(h.values, h.values[1:])
		h.values = h.values[:len(h.values)-1]
	}
	h.values = append(h.values, v)
}

// Sparkline returns the last width samples scaled to the block characters.
func (h *RateHistory) Sparkline(width int) string {
	runes := []rune(sparklineChars)
	if len(h.values) == 0 {
		return strings.Repeat(string(runes[0]), width)
	}

	vals := h.values
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}

	var maxVal float64
	for _, v := range vals {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	var b strings.Builder
	n := 0
	for _, v := range vals {
		idx := int(v / maxVal * float64(len(runes)-1))
		if idx >= len(runes) {
			idx = len(runes) - 1
		}
		b.WriteRune(runes[idx])
		n++
	}
	for ; n < width; n++ {
		b.WriteRune(runes[0])
	}
	return b.String()
}

// RenderRate renders the request rate sparkline.
func RenderRate(snap metrics.Snapshot, history *RateHistory, width int) string {
	sparkWidth := width - 12
	if sparkWidth < 10 {
		sparkWidth = 10
	}
	return "  Rate: " + sparkStyle.Render(history.Sparkline(sparkWidth))
}
