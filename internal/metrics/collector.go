package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// RouteStat tracks how often a page route was served.
type RouteStat struct {
	Name     string    `json:"name"`
	Pattern  string    `json:"pattern"`
	Target   string    `json:"target,omitempty"`
	Redirect string    `json:"redirect,omitempty"`
	Hits     int64     `json:"hits"`
	LastHit  time.Time `json:"last_hit,omitempty"`
}

// Snapshot is the complete dev server state at a point in time.
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Phase      string    `json:"phase"`
	ElapsedSec float64   `json:"elapsed_sec"`

	// Page routing
	Routes         []RouteStat `json:"routes"`
	PageRequests   int64       `json:"page_requests"`
	UnmatchedCount int64       `json:"unmatched_count"`
	LastUnmatched  string      `json:"last_unmatched,omitempty"`

	// Proxy
	ProxyTarget    string  `json:"proxy_target,omitempty"`
	ProxyRequests  int64   `json:"proxy_requests"`
	ProxyErrors    int64   `json:"proxy_errors"`
	ProxyPerSec    float64 `json:"proxy_per_sec"`
	ProxyBytes     int64   `json:"proxy_bytes"`
	LastProxyError string  `json:"last_proxy_error,omitempty"`

	// Live reload
	Reloads     int64     `json:"reloads"`
	LastReload  time.Time `json:"last_reload,omitempty"`
	ReloadPaths []string  `json:"reload_paths,omitempty"`
	Clients     int       `json:"clients"`

	// Errors
	ErrorCount int    `json:"error_count"`
	LastError  string `json:"last_error,omitempty"`
}

// LogEntry is one log line kept for /__dev/logs and the dashboard.
type LogEntry struct {
	Time      time.Time         `json:"time"`
	Level     string            `json:"level"`
	Component string            `json:"component,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Collector aggregates dev server activity and provides snapshots for
// consumption by the HTTP API and TUI.
type Collector struct {
	logger zerolog.Logger

	mu            sync.RWMutex
	phase         string
	startedAt     time.Time
	routes        map[string]*RouteStat // key: route name or pattern
	routeOrder    []string
	lastUnmatched string
	proxyTarget   string
	lastReload    time.Time
	reloadPaths   []string
	clients       int

	pageRequests atomic.Int64
	unmatched    atomic.Int64

	proxyRequests  atomic.Int64
	proxyErrors    atomic.Int64
	proxyBytes     atomic.Int64
	lastProxyError atomic.Value // string

	reloads atomic.Int64

	errorCount atomic.Int64
	lastError  atomic.Value // string

	proxyWindow *slidingWindow

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}

	logMu  sync.Mutex
	logs   []LogEntry
	logCap int

	done chan struct{}
}

// NewCollector creates a new Collector.
func NewCollector(logger zerolog.Logger) *Collector {
	c := &Collector{
		logger:      logger.With().Str("component", "metrics").Logger(),
		routes:      make(map[string]*RouteStat),
		subscribers: make(map[chan Snapshot]struct{}),
		proxyWindow: newSlidingWindow(60 * time.Second),
		logs:        make([]LogEntry, 0, 500),
		logCap:      500,
		done:        make(chan struct{}),
	}
	go c.broadcastLoop()
	return c
}

// SetPhase updates the current server phase.
func (c *Collector) SetPhase(phase string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phase
	if c.startedAt.IsZero() {
		c.startedAt = time.Now()
	}
}

// SetProxyTarget records the origin requests are proxied to.
func (c *Collector) SetProxyTarget(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxyTarget = target
}

// SetRoutes initializes route tracking in declaration order.
func (c *Collector) SetRoutes(routes []RouteStat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = make(map[string]*RouteStat, len(routes))
	c.routeOrder = make([]string, 0, len(routes))
	for i := range routes {
		rs := routes[i]
		key := routeKey(rs.Name, rs.Pattern)
		c.routes[key] = &rs
		c.routeOrder = append(c.routeOrder, key)
	}
}

// RecordRouteHit counts a page request resolved to the given route.
// Unnamed redirect entries are keyed by pattern.
func (c *Collector) RecordRouteHit(name, pattern string) {
	c.pageRequests.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	key := routeKey(name, pattern)
	rs, ok := c.routes[key]
	if !ok {
		rs = &RouteStat{Name: name, Pattern: pattern}
		c.routes[key] = rs
		c.routeOrder = append(c.routeOrder, key)
	}
	rs.Hits++
	rs.LastHit = time.Now()
}

// RecordUnmatched counts a page request no route resolved.
func (c *Collector) RecordUnmatched(path string) {
	c.pageRequests.Add(1)
	c.unmatched.Add(1)
	c.mu.Lock()
	c.lastUnmatched = path
	c.mu.Unlock()
}

// RecordProxied records a completed proxy round trip.
func (c *Collector) RecordProxied(bytes int64) {
	c.proxyRequests.Add(1)
	if bytes > 0 {
		c.proxyBytes.Add(bytes)
	}
	c.proxyWindow.Add(time.Now(), 1)
}

// RecordProxyError records a failed proxy round trip.
func (c *Collector) RecordProxyError(err error) {
	c.proxyRequests.Add(1)
	c.proxyErrors.Add(1)
	c.proxyWindow.Add(time.Now(), 1)
	if err != nil {
		c.lastProxyError.Store(err.Error())
	}
}

// RecordReload records a live-reload broadcast for the changed paths.
func (c *Collector) RecordReload(paths []string) {
	c.reloads.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastReload = time.Now()
	c.reloadPaths = append([]string(nil), paths...)
}

// SetClients records the number of connected live-reload clients.
func (c *Collector) SetClients(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = n
}

// RecordError increments the error count and stores the last error message.
func (c *Collector) RecordError(err error) {
	c.errorCount.Add(1)
	if err != nil {
		c.lastError.Store(err.Error())
	}
}

// AddLog appends a log entry to the ring buffer.
func (c *Collector) AddLog(entry LogEntry) {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	if len(c.logs) >= c.logCap {
		// Shift buffer: drop oldest quarter.
		n := c.logCap / 4
		copy(c.logs, c.logs[n:])
		c.logs = c.logs[:len(c.logs)-n]
	}
	c.logs = append(c.logs, entry)
}

// Logs returns a copy of recent log entries.
func (c *Collector) Logs() []LogEntry {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	out := make([]LogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

// Snapshot returns the current state (thread-safe).
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var elapsed float64
	if !c.startedAt.IsZero() {
		elapsed = now.Sub(c.startedAt).Seconds()
	}

	routes := make([]RouteStat, 0, len(c.routeOrder))
	for _, key := range c.routeOrder {
		routes = append(routes, *c.routes[key])
	}

	return Snapshot{
		Timestamp:      now,
		Phase:          c.phase,
		ElapsedSec:     elapsed,
		Routes:         routes,
		PageRequests:   c.pageRequests.Load(),
		UnmatchedCount: c.unmatched.Load(),
		LastUnmatched:  c.lastUnmatched,
		ProxyTarget:    c.proxyTarget,
		ProxyRequests:  c.proxyRequests.Load(),
		ProxyErrors:    c.proxyErrors.Load(),
		ProxyPerSec:    c.proxyWindow.Rate(),
		ProxyBytes:     c.proxyBytes.Load(),
		LastProxyError: loadString(&c.lastProxyError),
		Reloads:        c.reloads.Load(),
		LastReload:     c.lastReload,
		ReloadPaths:    append([]string(nil), c.reloadPaths...),
		Clients:        c.clients,
		ErrorCount:     int(c.errorCount.Load()),
		LastError:      loadString(&c.lastError),
	}
}

// Subscribe returns a channel that receives periodic Snapshot updates.
func (c *Collector) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 4)
	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel.
func (c *Collector) Unsubscribe(ch chan Snapshot) {
	c.subMu.Lock()
	delete(c.subscribers, ch)
	c.subMu.Unlock()
}

// Close stops the broadcast loop.
func (c *Collector) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Collector) broadcastLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			snap := c.Snapshot()
			c.subMu.Lock()
			for ch := range c.subscribers {
				select {
				case ch <- snap:
				default:
					// Subscriber too slow, skip.
				}
			}
			c.subMu.Unlock()
		}
	}
}

func routeKey(name, pattern string) string {
	if name != "" {
		return name
	}
	return pattern
}

func loadString(v *atomic.Value) string {
	if s, ok := v.Load().(string); ok {
		return s
	}
	return ""
}

// --- Sliding window for rate calculation ---

type windowEntry struct {
	time  time.Time
	value float64
}

type slidingWindow struct {
	mu      sync.Mutex
	entries []windowEntry
	window  time.Duration
}

func newSlidingWindow(d time.Duration) *slidingWindow {
	return &slidingWindow{
		entries: make([]windowEntry, 0, 128),
		window:  d,
	}
}

func (w *slidingWindow) Add(t time.Time, val float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, windowEntry{time: t, value: val})
	w.evict(t)
}

func (w *slidingWindow) Rate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.evict(now)
	if len(w.entries) == 0 {
		return 0
	}
	var total float64
	for _, e := range w.entries {
		total += e.value
	}
	elapsed := now.Sub(w.entries[0].time).Seconds()
	if elapsed < 1 {
		elapsed = 1
	}
	return total / elapsed
}

func (w *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.entries) && w.entries[i].time.Before(cutoff) {
		i++
	}
	if i > 0 {
		copy(w.entries, w.entries[i:])
		w.entries = w.entries[:len(w.entries)-i]
	}
}
