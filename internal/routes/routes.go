// Package routes holds the page route table of the module guide frontend.
// A table is an ordered list of entries resolved first-match-wins.
package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Entry binds a path pattern to a page or to a redirect destination.
type Entry struct {
	Pattern       string `json:"pattern"`
	Name          string `json:"name,omitempty"`
	Target        string `json:"target,omitempty"`
	PropsFromPath bool   `json:"props_from_path"`
	Redirect      string `json:"redirect,omitempty"`
}

// IsRedirect reports whether the entry redirects instead of rendering a page.
func (e Entry) IsRedirect() bool {
	return e.Redirect != ""
}

// Match is the result of resolving a path against a Table.
type Match struct {
	Entry  Entry             `json:"entry"`
	Params map[string]string `json:"params,omitempty"`
	// Props holds the params forwarded to the page; nil unless PropsFromPath.
	Props map[string]string `json:"props,omitempty"`
}

type segment struct {
	literal string
	param   string
}

type compiled struct {
	entry    Entry
	segments []segment
}

// Table is an immutable, ordered route table.
type Table struct {
	routes []compiled
}

// New validates entries and builds a Table. All violations are reported.
func New(entries ...Entry) (*Table, error) {
	var errs []error
	t := &Table{routes: make([]compiled, 0, len(entries))}
	names := make(map[string]struct{}, len(entries))
	shapes := make(map[string]string, len(entries))

	for _, e := range entries {
		segs, err := compile(e.Pattern)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		switch {
		case e.Target == "" && e.Redirect == "":
			errs = append(errs, fmt.Errorf("route %q: target or redirect is required", e.Pattern))
		case e.Target != "" && e.Redirect != "":
			errs = append(errs, fmt.Errorf("route %q: target and redirect are mutually exclusive", e.Pattern))
		}
		if e.Name == "" && !e.IsRedirect() {
			errs = append(errs, fmt.Errorf("route %q: name is required", e.Pattern))
		}
		if e.Name != "" {
			if _, dup := names[e.Name]; dup {
				errs = append(errs, fmt.Errorf("route %q: duplicate name %q", e.Pattern, e.Name))
			}
			names[e.Name] = struct{}{}
		}

		shape := shapeOf(segs)
		if prev, dup := shapes[shape]; dup {
			errs = append(errs, fmt.Errorf("route %q: collides with %q", e.Pattern, prev))
		} else {
			shapes[shape] = e.Pattern
		}

		t.routes = append(t.routes, compiled{entry: e, segments: segs})
	}

	if len(errs) == 0 {
		for _, r := range t.routes {
			if !r.entry.IsRedirect() {
				continue
			}
			m, ok := t.Resolve(r.entry.Redirect)
			if !ok || m.Entry.IsRedirect() {
				errs = append(errs, fmt.Errorf("route %q: redirect %q does not resolve to a page", r.entry.Pattern, r.entry.Redirect))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// mustNew is like New but panics on an invalid table.
func mustNew(entries ...Entry) *Table {
	t, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve finds the first entry matching path.
func (t *Table) Resolve(path string) (Match, bool) {
	parts, ok := split(path)
	if !ok {
		return Match{}, false
	}
	for _, r := range t.routes {
		params, ok := r.match(parts)
		if !ok {
			continue
		}
		m := Match{Entry: r.entry, Params: params}
		if r.entry.PropsFromPath {
			m.Props = params
		}
		return m, true
	}
	return Match{}, false
}

// Entries returns the table's entries in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.routes))
	for i, r := range t.routes {
		out[i] = r.entry
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.routes)
}

func (r compiled) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(r.segments) {
		return nil, false
	}
	var params map[string]string
	for i, s := range r.segments {
		if s.param == "" {
			if parts[i] != s.literal {
				return nil, false
			}
			continue
		}
		v, err := url.PathUnescape(parts[i])
		if err != nil || v == "" {
			return nil, false
		}
		if params == nil {
			params = make(map[string]string, 1)
		}
		params[s.param] = v
	}
	return params, true
}

func compile(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("route %q: pattern must start with /", pattern)
	}
	parts, _ := split(pattern)
	segs := make([]segment, 0, len(parts))
	params := 0
	for _, p := range parts {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if name == "" {
				return nil, fmt.Errorf("route %q: empty placeholder name", pattern)
			}
			params++
			segs = append(segs, segment{param: name})
			continue
		}
		if p == "" {
			return nil, fmt.Errorf("route %q: empty path segment", pattern)
		}
		segs = append(segs, segment{literal: p})
	}
	if params > 1 {
		return nil, fmt.Errorf("route %q: at most one placeholder is allowed", pattern)
	}
	return segs, nil
}

// split breaks a path into segments, ignoring one trailing slash.
func split(path string) ([]string, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return nil, true
	}
	return strings.Split(trimmed, "/"), true
}

func shapeOf(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if s.param != "" {
			b.WriteByte(':')
			continue
		}
		b.WriteString(s.literal)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
