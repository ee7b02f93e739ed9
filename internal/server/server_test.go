package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/jfoltran/moduleguide/internal/devproxy"
	"github.com/jfoltran/moduleguide/internal/metrics"
	"github.com/jfoltran/moduleguide/internal/routes"
	"github.com/jfoltran/moduleguide/internal/watch"
)

var testAssets = fstest.MapFS{
	"index.html":          {Data: []byte("<html><head><title>app</title></head><body><div id=app></div></body></html>")},
	"assets/index-abc.js": {Data: []byte("console.log('app')")},
	"src/assets/main.css": {Data: []byte("body{}")},
}

func newTestServer(t *testing.T, table *routes.Table, proxy *devproxy.Proxy) (*Server, *metrics.Collector) {
	t.Helper()
	c := metrics.NewCollector(zerolog.Nop())
	t.Cleanup(c.Close)

	s, err := New(Options{Routes: table, Proxy: proxy, Assets: testAssets, Overlay: true}, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, c
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestPageRoutes(t *testing.T) {
	s, c := newTestServer(t, routes.Latest(), nil)
	h := s.Handler()

	tests := []struct {
		path       string
		wantCode   int
		wantRoute  string
		wantParams string
	}{
		{path: "/", wantCode: http.StatusOK, wantRoute: "search"},
		{path: "/module/CS101", wantCode: http.StatusOK, wantRoute: "module", wantParams: "moduleName=CS101"},
		{path: "/admin", wantCode: http.StatusOK, wantRoute: "admin"},
		{path: "/unknown", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get(HeaderRouteName); got != tt.wantRoute {
				t.Errorf("%s = %q, want %q", HeaderRouteName, got, tt.wantRoute)
			}
			if got := rec.Header().Get(HeaderRouteParams); got != tt.wantParams {
				t.Errorf("%s = %q, want %q", HeaderRouteParams, got, tt.wantParams)
			}
			body := rec.Body.String()
			if !strings.Contains(body, `<div id=app>`) {
				t.Errorf("body should be the app shell, got %q", body)
			}
			if !strings.Contains(body, "/__dev/client.js") {
				t.Error("live-reload client should be injected")
			}
		})
	}

	snap := c.Snapshot()
	if snap.PageRequests != 4 {
		t.Errorf("PageRequests = %d, want 4", snap.PageRequests)
	}
	if snap.UnmatchedCount != 1 || snap.LastUnmatched != "/unknown" {
		t.Errorf("unmatched = %d %q", snap.UnmatchedCount, snap.LastUnmatched)
	}
	for _, rs := range snap.Routes {
		if rs.Hits != 1 {
			t.Errorf("route %s hits = %d, want 1", rs.Name, rs.Hits)
		}
	}
}

func TestRedirectRoute(t *testing.T) {
	v2, err := routes.Version(2)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, v2, nil)

	rec := get(t, s.Handler(), "/?ref=home")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/module/CS101?ref=home" {
		t.Errorf("Location = %q, want /module/CS101?ref=home", loc)
	}
}

func TestAssets(t *testing.T) {
	s, c := newTestServer(t, routes.Latest(), nil)
	h := s.Handler()

	rec := get(t, h, "/src/assets/main.css")
	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Errorf("css: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "/assets/missing.js")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing asset status = %d, want 404", rec.Code)
	}

	if snap := c.Snapshot(); snap.PageRequests != 0 {
		t.Errorf("assets should not count as page requests, got %d", snap.PageRequests)
	}
}

func TestEmbeddedPlaceholder(t *testing.T) {
	c := metrics.NewCollector(zerolog.Nop())
	defer c.Close()

	s, err := New(Options{Routes: routes.Latest()}, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := get(t, s.Handler(), "/admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No frontend build found") {
		t.Errorf("expected placeholder page, got %q", rec.Body.String())
	}
}

func TestNewRequiresRoutes(t *testing.T) {
	c := metrics.NewCollector(zerolog.Nop())
	defer c.Close()
	if _, err := New(Options{}, c, zerolog.Nop()); err == nil {
		t.Error("expected error without a route table")
	}
}

func TestClientScript(t *testing.T) {
	s, _ := newTestServer(t, routes.Latest(), nil)
	rec := get(t, s.Handler(), "/__dev/client.js")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "const overlay = true;") {
		t.Error("overlay flag should be rendered into the client")
	}
	if strings.Contains(body, "__OVERLAY__") {
		t.Error("placeholder left in client script")
	}
}

func TestProxyMounted(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.URL.RequestURI())
	}))
	defer backend.Close()

	c := metrics.NewCollector(zerolog.Nop())
	defer c.Close()

	p, err := devproxy.New(devproxy.Rule{Prefix: "/api", Target: backend.URL, ChangeOrigin: true}, devproxy.WithRecorder(c))
	if err != nil {
		t.Fatalf("devproxy.New: %v", err)
	}
	s, err := New(Options{Routes: routes.Latest(), Proxy: p, Assets: testAssets}, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := get(t, s.Handler(), "/api/anything?x=1&y=two")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "/api/anything?x=1&y=two" {
		t.Errorf("upstream saw %q, want /api/anything?x=1&y=two", got)
	}

	// Non-canonical paths reach the backend as sent, for any method.
	for _, tt := range []struct{ method, target string }{
		{"GET", "/api//x"},
		{"GET", "/api/a/../b"},
		{"POST", "/api//x"},
		{"GET", "/api?x=1"},
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s %s: status = %d, want 200", tt.method, tt.target, rec.Code)
			continue
		}
		if got := rec.Body.String(); got != tt.target {
			t.Errorf("%s %s: upstream saw %q", tt.method, tt.target, got)
		}
	}

	snap := c.Snapshot()
	if snap.ProxyRequests != 5 {
		t.Errorf("ProxyRequests = %d, want 5", snap.ProxyRequests)
	}
	if snap.ProxyTarget != backend.URL {
		t.Errorf("ProxyTarget = %q, want %q", snap.ProxyTarget, backend.URL)
	}
	if snap.PageRequests != 0 {
		t.Errorf("proxied request counted as page: %d", snap.PageRequests)
	}
}

func TestLiveReload(t *testing.T) {
	s, c := newTestServer(t, routes.Latest(), nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/__dev/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return m
	}

	if m := read(); m.Type != "connected" {
		t.Fatalf("first message = %+v, want connected", m)
	}

	s.Reload([]watch.Change{{Path: "src/App.vue", Op: watch.Modified}})

	m := read()
	if m.Type != "full-reload" || len(m.Paths) != 1 || m.Paths[0] != "src/App.vue" {
		t.Errorf("reload message = %+v", m)
	}

	snap := c.Snapshot()
	if snap.Reloads != 1 {
		t.Errorf("Reloads = %d, want 1", snap.Reloads)
	}
	if snap.Clients != 1 {
		t.Errorf("Clients = %d, want 1", snap.Clients)
	}
}

func TestStatusEvents(t *testing.T) {
	s, c := newTestServer(t, routes.Latest(), nil)
	c.SetPhase("serving")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/__dev/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Phase != "serving" || len(snap.Routes) != 3 {
		t.Errorf("initial snapshot phase=%q routes=%d", snap.Phase, len(snap.Routes))
	}

	// The collector broadcasts every 500ms.
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("second read: %v", err)
	}
}

func TestInjectClient(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"head", "<head></head>", "<head>" + clientTag + "</head>"},
		{"no head", "<p>hi</p>", "<p>hi</p>" + clientTag},
		{"already present", `<script src="/__dev/client.js"></script>`, `<script src="/__dev/client.js"></script>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(injectClient([]byte(tt.in))); got != tt.want {
				t.Errorf("injectClient = %q, want %q", got, tt.want)
			}
		})
	}
}
