// Package watch detects file changes under a directory by polling.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Op is the kind of change observed for a path.
type Op string

const (
	Created  Op = "created"
	Modified Op = "modified"
	Removed  Op = "removed"
)

// Change is a single observed change. Path is slash-separated and relative
// to the watched root.
type Change struct {
	Path string `json:"path"`
	Op   Op     `json:"op"`
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher polls a directory tree for changes.
type Watcher struct {
	root     string
	interval time.Duration
	ignored  []string
	logger   zerolog.Logger

	state map[string]fileState
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithIgnored sets the ignore globs. See Ignored for the syntax.
func WithIgnored(patterns ...string) Option {
	return func(w *Watcher) {
		w.ignored = append([]string(nil), patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger.With().Str("component", "watcher").Logger()
	}
}

// New creates a Watcher for root. The default interval is one second.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		interval: time.Second,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run takes an initial scan and then polls until ctx is cancelled, calling
// onChange with each non-empty batch. It returns ctx.Err() on cancellation
// or the error of the initial scan.
func (w *Watcher) Run(ctx context.Context, onChange func([]Change)) error {
	state, err := w.scan()
	if err != nil {
		return err
	}
	w.state = state
	w.logger.Info().Str("root", w.root).Dur("interval", w.interval).Int("files", len(state)).Msg("watching for changes")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			changes, err := w.Poll()
			if err != nil {
				w.logger.Warn().Err(err).Msg("poll failed")
				continue
			}
			if len(changes) > 0 {
				onChange(changes)
			}
		}
	}
}

// Poll scans once and returns the changes since the previous scan.
// The first call establishes the baseline and reports nothing.
func (w *Watcher) Poll() ([]Change, error) {
	next, err := w.scan()
	if err != nil {
		return nil, err
	}
	if w.state == nil {
		w.state = next
		return nil, nil
	}

	var changes []Change
	for p, cur := range next {
		prev, ok := w.state[p]
		switch {
		case !ok:
			changes = append(changes, Change{Path: p, Op: Created})
		case !prev.modTime.Equal(cur.modTime) || prev.size != cur.size:
			changes = append(changes, Change{Path: p, Op: Modified})
		}
	}
	for p := range w.state {
		if _, ok := next[p]; !ok {
			changes = append(changes, Change{Path: p, Op: Removed})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	w.state = next
	return changes, nil
}

func (w *Watcher) scan() (map[string]fileState, error) {
	state := make(map[string]fileState)
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Files can vanish between listing and stat.
			if p != w.root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if Ignored(w.ignored, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if Ignored(w.ignored, rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		state[rel] = fileState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state, err
}

// Ignored reports whether rel matches any pattern. Patterns use path.Match
// syntax per segment, plus "**" for any number of segments. A directory is
// passed with a trailing slash so "**/node_modules/**" prunes it whole.
func Ignored(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matchGlob(pat, rel) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], name[0])
		if err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}
