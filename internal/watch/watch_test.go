package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var defaultIgnored = []string{"**/node_modules/**", "**/vite.config.js", "**/.env"}

func writeFile(t *testing.T, root, rel, data string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"node_modules/", true},
		{"frontend/node_modules/", true},
		{"frontend/node_modules/vue/index.js", true},
		{"vite.config.js", true},
		{"frontend/vite.config.js", true},
		{".env", true},
		{"frontend/.env", true},
		{".env.local", false},
		{"src/main.js", false},
		{"src/", false},
		{"src/router/index.js", false},
		{"vite.config.ts", false},
	}
	for _, tt := range tests {
		if got := Ignored(defaultIgnored, tt.rel); got != tt.want {
			t.Errorf("Ignored(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestMatchGlobSegments(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"src/*.vue", "src/App.vue", true},
		{"src/*.vue", "src/pages/App.vue", false},
		{"src/**/*.vue", "src/App.vue", true},
		{"src/**/*.vue", "src/pages/module/ModulePage.vue", true},
		{"**", "anything/at/all", true},
		{"dist/**", "dist/", true},
		{"dist/**", "distant/", false},
	}
	for _, tt := range tests {
		if got := matchGlob(tt.pattern, tt.name); got != tt.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestPoll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.js", "a")
	writeFile(t, root, "src/App.vue", "a")
	writeFile(t, root, "node_modules/vue/index.js", "a")

	w := New(root, WithIgnored(defaultIgnored...))

	if changes, err := w.Poll(); err != nil || len(changes) != 0 {
		t.Fatalf("baseline Poll = %v, %v; want no changes", changes, err)
	}

	writeFile(t, root, "src/main.js", "changed")
	writeFile(t, root, "src/router/index.js", "new")
	writeFile(t, root, "node_modules/vue/index.js", "ignored change")
	writeFile(t, root, ".env", "SECRET=1")
	if err := os.Remove(filepath.Join(root, "src", "App.vue")); err != nil {
		t.Fatal(err)
	}

	changes, err := w.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	want := []Change{
		{Path: "src/App.vue", Op: Removed},
		{Path: "src/main.js", Op: Modified},
		{Path: "src/router/index.js", Op: Created},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %+v, want %+v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %+v, want %+v", i, changes[i], want[i])
		}
	}

	if changes, _ := w.Poll(); len(changes) != 0 {
		t.Errorf("second Poll = %+v, want none", changes)
	}
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html>")

	w := New(root, WithInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []Change, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx, func(c []Change) { batches <- c })
	}()

	// Give the initial scan time to finish before changing anything.
	time.Sleep(60 * time.Millisecond)
	writeFile(t, root, "src/App.vue", "<template/>")

	select {
	case got := <-batches:
		if len(got) != 1 || got[0].Path != "src/App.vue" || got[0].Op != Created {
			t.Errorf("batch = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change batch received")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestRunMissingRoot(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"))
	if err := w.Run(context.Background(), func([]Change) {}); err == nil {
		t.Error("expected error for missing root")
	}
}
