package tui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jfoltran/moduleguide/internal/metrics"
)

func TestModelAppliesState(t *testing.T) {
	m := NewModel(LocalSource{}, "moduleguide dev")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)

	snap := metrics.Snapshot{Phase: "serving", ProxyTarget: "http://backend:5000", ProxyPerSec: 2}
	next, cmd := m.Update(stateMsg{snap: snap})
	m = next.(Model)
	if cmd == nil {
		t.Error("state update should schedule the next tick")
	}
	if m.snapshot.Phase != "serving" {
		t.Errorf("Phase = %q, want serving", m.snapshot.Phase)
	}

	view := m.View()
	for _, want := range []string{"moduleguide dev", "SERVING", "http://backend:5000"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, _ = m.Update(stateMsg{err: errors.New("connection refused")})
	m = next.(Model)
	if m.snapshot.Phase != "serving" {
		t.Error("a failed fetch should keep the last snapshot")
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Error("view should show the fetch error")
	}
}

func TestModelQuit(t *testing.T) {
	m := NewModel(LocalSource{}, "x")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestLocalSource(t *testing.T) {
	c := metrics.NewCollector(zerolog.Nop())
	defer c.Close()
	c.SetPhase("serving")
	c.AddLog(metrics.LogEntry{Level: "info", Message: "hello"})

	snap, logs, err := LocalSource{Collector: c}.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != "serving" || len(logs) != 1 {
		t.Errorf("snap=%+v logs=%+v", snap, logs)
	}
}

func TestRemoteSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/__dev/status":
			w.Write([]byte(`{"phase":"serving","proxy_requests":7}`))
		case "/__dev/logs":
			w.Write([]byte(`[{"level":"info","message":"ready"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	snap, logs, err := NewRemoteSource(ts.URL + "/").Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Phase != "serving" || snap.ProxyRequests != 7 {
		t.Errorf("snap = %+v", snap)
	}
	if len(logs) != 1 || logs[0].Message != "ready" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestRemoteSourceDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	if _, _, err := NewRemoteSource(ts.URL).Fetch(context.Background()); err == nil {
		t.Error("expected error for 404 status")
	}
}
