package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCollector_PhaseTracking(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	c.SetPhase("starting")
	snap := c.Snapshot()
	if snap.Phase != "starting" {
		t.Errorf("Phase = %q, want starting", snap.Phase)
	}

	c.SetPhase("serving")
	snap = c.Snapshot()
	if snap.Phase != "serving" {
		t.Errorf("Phase = %q, want serving", snap.Phase)
	}
}

func TestCollector_RouteHits(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	c.SetRoutes([]RouteStat{
		{Name: "module", Pattern: "/module/:moduleName"},
		{Name: "search", Pattern: "/"},
	})

	c.RecordRouteHit("module", "/module/:moduleName")
	c.RecordRouteHit("module", "/module/:moduleName")
	c.RecordRouteHit("search", "/")

	snap := c.Snapshot()
	if len(snap.Routes) != 2 {
		t.Fatalf("Routes = %d, want 2", len(snap.Routes))
	}
	if snap.Routes[0].Name != "module" || snap.Routes[0].Hits != 2 {
		t.Errorf("routes[0] = %+v, want module with 2 hits", snap.Routes[0])
	}
	if snap.Routes[1].Hits != 1 {
		t.Errorf("search hits = %d, want 1", snap.Routes[1].Hits)
	}
	if snap.PageRequests != 3 {
		t.Errorf("PageRequests = %d, want 3", snap.PageRequests)
	}
}

func TestCollector_UnnamedRouteKeyedByPattern(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	c.RecordRouteHit("", "/")
	c.RecordRouteHit("", "/")

	snap := c.Snapshot()
	if len(snap.Routes) != 1 {
		t.Fatalf("Routes = %d, want 1", len(snap.Routes))
	}
	if snap.Routes[0].Pattern != "/" || snap.Routes[0].Hits != 2 {
		t.Errorf("route = %+v, want / with 2 hits", snap.Routes[0])
	}
}

func TestCollector_Unmatched(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	c.RecordUnmatched("/unknown")

	snap := c.Snapshot()
	if snap.UnmatchedCount != 1 {
		t.Errorf("UnmatchedCount = %d, want 1", snap.UnmatchedCount)
	}
	if snap.LastUnmatched != "/unknown" {
		t.Errorf("LastUnmatched = %q, want /unknown", snap.LastUnmatched)
	}
}

func TestCollector_ProxyCounters(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	c.SetProxyTarget("http://backend:5000")
	c.RecordProxied(100)
	c.RecordProxied(50)
	c.RecordProxyError(fmt.Errorf("dial tcp: connection refused"))

	snap := c.Snapshot()
	if snap.ProxyRequests != 3 {
		t.Errorf("ProxyRequests = %d, want 3", snap.ProxyRequests)
	}
	if snap.ProxyErrors != 1 {
		t.Errorf("ProxyErrors = %d, want 1", snap.ProxyErrors)
	}
	if snap.ProxyBytes != 150 {
		t.Errorf("ProxyBytes = %d, want 150", snap.ProxyBytes)
	}
	if snap.ProxyPerSec <= 0 {
		t.Errorf("ProxyPerSec = %f, want > 0", snap.ProxyPerSec)
	}
	if snap.LastProxyError != "dial tcp: connection refused" {
		t.Errorf("LastProxyError = %q", snap.LastProxyError)
	}
	if snap.ProxyTarget != "http://backend:5000" {
		t.Errorf("ProxyTarget = %q", snap.ProxyTarget)
	}
}

func TestCollector_Reloads(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	paths := []string{"src/App.vue"}
	c.RecordReload(paths)
	paths[0] = "mutated"

	snap := c.Snapshot()
	if snap.Reloads != 1 {
		t.Errorf("Reloads = %d, want 1", snap.Reloads)
	}
	if len(snap.ReloadPaths) != 1 || snap.ReloadPaths[0] != "src/App.vue" {
		t.Errorf("ReloadPaths = %v, want [src/App.vue]", snap.ReloadPaths)
	}
	if snap.LastReload.IsZero() {
		t.Error("LastReload should be set")
	}
}

func TestCollector_ErrorTracking(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	c.RecordError(nil)
	snap := c.Snapshot()
	if snap.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", snap.ErrorCount)
	}

	c.RecordError(fmt.Errorf("test error"))
	snap = c.Snapshot()
	if snap.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", snap.ErrorCount)
	}
	if snap.LastError != "test error" {
		t.Errorf("LastError = %q, want 'test error'", snap.LastError)
	}
}

func TestCollector_LogBuffer(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.AddLog(LogEntry{
			Time:    time.Now(),
			Level:   "info",
			Message: fmt.Sprintf("log %d", i),
		})
	}

	logs := c.Logs()
	if len(logs) != 10 {
		t.Errorf("expected 10 logs, got %d", len(logs))
	}
}

func TestCollector_LogBufferEviction(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	for i := 0; i < 600; i++ {
		c.AddLog(LogEntry{
			Time:    time.Now(),
			Level:   "info",
			Message: fmt.Sprintf("log %d", i),
		})
	}

	logs := c.Logs()
	if len(logs) > 500 {
		t.Errorf("log buffer should not exceed capacity, got %d", len(logs))
	}
	if logs[len(logs)-1].Message != "log 599" {
		t.Errorf("newest log = %q, want 'log 599'", logs[len(logs)-1].Message)
	}
}

func TestCollector_SubscribeReceives(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	ch := c.Subscribe()
	defer c.Unsubscribe(ch)
	c.SetPhase("serving")

	select {
	case snap := <-ch:
		if snap.Phase != "serving" {
			t.Errorf("Phase = %q, want serving", snap.Phase)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}
}

func TestCollector_Elapsed(t *testing.T) {
	c := NewCollector(zerolog.Nop())
	defer c.Close()

	c.SetPhase("serving")
	time.Sleep(50 * time.Millisecond)
	snap := c.Snapshot()
	if snap.ElapsedSec < 0.04 {
		t.Errorf("ElapsedSec = %f, expected > 0.04", snap.ElapsedSec)
	}
}

func TestSlidingWindow_Rate(t *testing.T) {
	w := newSlidingWindow(5 * time.Second)
	now := time.Now()

	w.Add(now.Add(-3*time.Second), 30)
	w.Add(now.Add(-2*time.Second), 20)
	w.Add(now.Add(-1*time.Second), 10)

	rate := w.Rate()
	if rate <= 0 {
		t.Errorf("Rate() = %f, want > 0", rate)
	}
}

func TestSlidingWindow_Eviction(t *testing.T) {
	w := newSlidingWindow(100 * time.Millisecond)
	now := time.Now()

	w.Add(now.Add(-200*time.Millisecond), 100)
	w.Add(now, 50)

	rate := w.Rate()
	if rate <= 0 || rate > 50 {
		t.Errorf("Rate() = %f, want (0, 50]", rate)
	}
}

func TestSlidingWindow_Empty(t *testing.T) {
	w := newSlidingWindow(time.Second)
	if r := w.Rate(); r != 0 {
		t.Errorf("Rate() on empty window = %f, want 0", r)
	}
}
