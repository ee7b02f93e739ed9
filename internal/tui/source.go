package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jfoltran/moduleguide/internal/metrics"
)

// Source supplies the dashboard with dev server state.
type Source interface {
	Fetch(ctx context.Context) (metrics.Snapshot, []metrics.LogEntry, error)
}

// LocalSource reads from a collector in the same process.
type LocalSource struct {
	Collector *metrics.Collector
}

func (s LocalSource) Fetch(context.Context) (metrics.Snapshot, []metrics.LogEntry, error) {
	return s.Collector.Snapshot(), s.Collector.Logs(), nil
}

// RemoteSource polls a running dev server's /__dev endpoints.
type RemoteSource struct {
	BaseURL string
	Client  *http.Client
}

// NewRemoteSource targets the dev server at baseURL, e.g. http://localhost:5173.
func NewRemoteSource(baseURL string) *RemoteSource {
	return &RemoteSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

func (s *RemoteSource) Fetch(ctx context.Context) (metrics.Snapshot, []metrics.LogEntry, error) {
	var snap metrics.Snapshot
	if err := s.get(ctx, "/__dev/status", &snap); err != nil {
		return metrics.Snapshot{}, nil, err
	}
	var logs []metrics.LogEntry
	if err := s.get(ctx, "/__dev/logs", &logs); err != nil {
		return snap, nil, err
	}
	return snap, logs, nil
}

func (s *RemoteSource) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
