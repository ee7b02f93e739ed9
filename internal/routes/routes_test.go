package routes

import (
	"strings"
	"testing"
)

func TestLatestResolve(t *testing.T) {
	tbl := Latest()

	tests := []struct {
		path      string
		wantOK    bool
		wantName  string
		wantParam string
	}{
		{path: "/", wantOK: true, wantName: "search"},
		{path: "/module/CS101", wantOK: true, wantName: "module", wantParam: "CS101"},
		{path: "/module/CS101/", wantOK: true, wantName: "module", wantParam: "CS101"},
		{path: "/module/COMP%201511", wantOK: true, wantName: "module", wantParam: "COMP 1511"},
		{path: "/admin", wantOK: true, wantName: "admin"},
		{path: "/admin/", wantOK: true, wantName: "admin"},
		{path: "/unknown", wantOK: false},
		{path: "/module", wantOK: false},
		{path: "/module/", wantOK: false},
		{path: "/module/CS101/reviews", wantOK: false},
		{path: "/Admin", wantOK: false},
		{path: "admin", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, ok := tbl.Resolve(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if m.Entry.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", m.Entry.Name, tt.wantName)
			}
			if got := m.Params["moduleName"]; got != tt.wantParam {
				t.Errorf("moduleName = %q, want %q", got, tt.wantParam)
			}
		})
	}
}

func TestPropsForwarding(t *testing.T) {
	tbl := Latest()

	m, _ := tbl.Resolve("/module/CS101")
	if m.Props["moduleName"] != "CS101" {
		t.Errorf("Props = %v, want moduleName=CS101", m.Props)
	}

	m, _ = tbl.Resolve("/admin")
	if m.Props != nil {
		t.Errorf("Props = %v, want nil for entry without props", m.Props)
	}
}

func TestFirstMatchWins(t *testing.T) {
	tbl, err := New(
		Entry{Pattern: "/module/:code", Name: "by-code", Target: "A"},
		Entry{Pattern: "/module/new", Name: "new", Target: "B"},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m, ok := tbl.Resolve("/module/new")
	if !ok || m.Entry.Name != "by-code" {
		t.Errorf("Resolve(/module/new) = %q, want by-code", m.Entry.Name)
	}
}

func TestVersions(t *testing.T) {
	tests := []struct {
		version      int
		entries      int
		rootName     string
		rootRedirect string
	}{
		{version: 1, entries: 1},
		{version: 2, entries: 2, rootRedirect: "/module/CS101"},
		{version: 3, entries: 2, rootName: "search"},
		{version: 4, entries: 3, rootName: "search"},
	}

	for _, tt := range tests {
		tbl, err := Version(tt.version)
		if err != nil {
			t.Fatalf("Version(%d): %v", tt.version, err)
		}
		if tbl.Len() != tt.entries {
			t.Errorf("v%d: Len = %d, want %d", tt.version, tbl.Len(), tt.entries)
		}

		m, ok := tbl.Resolve("/")
		if tt.rootName == "" && tt.rootRedirect == "" {
			if ok {
				t.Errorf("v%d: / should not resolve", tt.version)
			}
			continue
		}
		if !ok {
			t.Fatalf("v%d: / did not resolve", tt.version)
		}
		if m.Entry.Name != tt.rootName {
			t.Errorf("v%d: / name = %q, want %q", tt.version, m.Entry.Name, tt.rootName)
		}
		if m.Entry.Redirect != tt.rootRedirect {
			t.Errorf("v%d: / redirect = %q, want %q", tt.version, m.Entry.Redirect, tt.rootRedirect)
		}
	}

	if _, err := Version(5); err == nil {
		t.Error("Version(5) should fail")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{
			name: "duplicate name",
			entries: []Entry{
				{Pattern: "/a", Name: "x", Target: "A"},
				{Pattern: "/b", Name: "x", Target: "B"},
			},
			wantErr: `duplicate name "x"`,
		},
		{
			name: "colliding placeholders",
			entries: []Entry{
				{Pattern: "/module/:a", Name: "a", Target: "A"},
				{Pattern: "/module/:b", Name: "b", Target: "B"},
			},
			wantErr: "collides with",
		},
		{
			name:    "two placeholders",
			entries: []Entry{{Pattern: "/:a/:b", Name: "a", Target: "A"}},
			wantErr: "at most one placeholder",
		},
		{
			name:    "relative pattern",
			entries: []Entry{{Pattern: "module", Name: "a", Target: "A"}},
			wantErr: "must start with /",
		},
		{
			name:    "missing target",
			entries: []Entry{{Pattern: "/a", Name: "a"}},
			wantErr: "target or redirect is required",
		},
		{
			name:    "target and redirect",
			entries: []Entry{{Pattern: "/a", Name: "a", Target: "A", Redirect: "/a"}},
			wantErr: "mutually exclusive",
		},
		{
			name:    "unnamed page",
			entries: []Entry{{Pattern: "/a", Target: "A"}},
			wantErr: "name is required",
		},
		{
			name:    "dangling redirect",
			entries: []Entry{{Pattern: "/", Redirect: "/nowhere"}},
			wantErr: "does not resolve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q missing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEntriesIsCopy(t *testing.T) {
	tbl := Latest()
	entries := tbl.Entries()
	entries[0].Name = "mutated"

	m, _ := tbl.Resolve("/module/X")
	if m.Entry.Name != "module" {
		t.Errorf("table mutated through Entries(): %q", m.Entry.Name)
	}
}
