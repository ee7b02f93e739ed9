package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jfoltran/moduleguide/internal/metrics"
	"github.com/jfoltran/moduleguide/internal/tui/components"
)

const refreshInterval = 500 * time.Millisecond

// stateMsg carries a fetched snapshot into the Bubble Tea update loop.
type stateMsg struct {
	snap metrics.Snapshot
	logs []metrics.LogEntry
	err  error
}

type tickMsg time.Time

// Model is the Bubble Tea model for the dev server dashboard.
type Model struct {
	source      Source
	title       string
	snapshot    metrics.Snapshot
	logs        []metrics.LogEntry
	err         error
	rateHistory *components.RateHistory

	width  int
	height int
	ready  bool
}

// NewModel creates a dashboard reading from source.
func NewModel(source Source, title string) Model {
	return Model{
		source:      source,
		title:       title,
		rateHistory: components.NewRateHistory(60),
	}
}

// Init fetches the first state immediately.
func (m Model) Init() tea.Cmd {
	return fetch(m.source)
}

func fetch(source Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		snap, logs, err := source.Fetch(ctx)
		return stateMsg{snap: snap, logs: logs, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case tickMsg:
		return m, fetch(m.source)

	case stateMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snapshot = msg.snap
			m.logs = msg.logs
			m.rateHistory.Push(msg.snap.ProxyPerSec)
		}
		return m, tick()
	}

	return m, nil
}

// View renders the full dashboard.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	w := m.width
	snap := m.snapshot

	var sections []string

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorPrimary).
		Width(w).
		Padding(0, 1).
		Render(" " + m.title)
	sections = append(sections, title)

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("  %v (retrying)", m.err)))
	}

	// Header: phase, elapsed, proxy target, clients.
	sections = append(sections, boxStyle.Width(w-2).Render(components.RenderHeader(snap, w-4)))

	// Route hits.
	routeHeight := m.height - 20
	if routeHeight < 3 {
		routeHeight = 3
	}
	sections = append(sections, boxStyle.Width(w-2).Render(components.RenderRoutes(snap, w-4, routeHeight)))

	// Proxy counters and request rate.
	proxy := components.RenderProxy(snap, w-4) + "\n" + components.RenderRate(snap, m.rateHistory, w-4)
	sections = append(sections, boxStyle.Width(w-2).Render(proxy))

	// Live reload.
	sections = append(sections, boxStyle.Width(w-2).Render(components.RenderReload(snap, w-4)))

	// Logs (last 5 lines).
	sections = append(sections, boxStyle.Width(w-2).Render(components.RenderLogs(m.logs, 5)))

	sections = append(sections, helpStyle.Render("  q: quit"))

	return strings.Join(sections, "\n")
}

// Run starts the dashboard in fullscreen mode.
func Run(source Source, title string) error {
	p := tea.NewProgram(NewModel(source, title), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
