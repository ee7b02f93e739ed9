package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const persistInterval = 2 * time.Second

// State is what the dev server leaves behind for `moduleguide status`.
type State struct {
	PID      int      `json:"pid"`
	Snapshot Snapshot `json:"snapshot"`
}

// StateFile is the on-disk location of the dev server state.
type StateFile string

// DefaultStateFile is ~/.moduleguide/state.json.
func DefaultStateFile() (StateFile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return StateFile(filepath.Join(home, ".moduleguide", "state.json")), nil
}

// Write replaces the file through a rename so readers never see a partial
// document.
func (f StateFile) Write(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(string(f)), 0o755); err != nil {
		return err
	}
	tmp := string(f) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, string(f))
}

func (f StateFile) Read() (*State, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	return &st, nil
}

// StatePersister writes the collector's snapshot to a StateFile every two
// seconds while the dev server runs.
type StatePersister struct {
	collector *Collector
	file      StateFile
	logger    zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStatePersister(collector *Collector, file StateFile, logger zerolog.Logger) *StatePersister {
	return &StatePersister{
		collector: collector,
		file:      file,
		logger:    logger.With().Str("component", "state").Logger(),
	}
}

// Start writes once immediately and then on every tick until ctx is
// cancelled or Stop is called.
func (sp *StatePersister) Start(ctx context.Context) {
	ctx, sp.cancel = context.WithCancel(ctx)
	sp.wg.Add(1)
	go func() {
		defer sp.wg.Done()
		ticker := time.NewTicker(persistInterval)
		defer ticker.Stop()
		for {
			sp.persist()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the loop and records a final snapshot. It is safe to call more
// than once.
func (sp *StatePersister) Stop() {
	if sp.cancel != nil {
		sp.cancel()
	}
	sp.wg.Wait()
	sp.persist()
}

func (sp *StatePersister) persist() {
	st := State{PID: os.Getpid(), Snapshot: sp.collector.Snapshot()}
	if err := sp.file.Write(st); err != nil {
		sp.logger.Warn().Err(err).Str("path", string(sp.file)).Msg("write state file")
	}
}
