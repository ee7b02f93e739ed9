package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jfoltran/moduleguide/internal/devproxy"
	"github.com/jfoltran/moduleguide/internal/metrics"
	"github.com/jfoltran/moduleguide/internal/routes"
	"github.com/jfoltran/moduleguide/internal/watch"
)

// Options configures the dev server.
type Options struct {
	Listen string
	Port   int
	Routes *routes.Table
	// Proxy handles the backend prefix. Nil disables proxying.
	Proxy *devproxy.Proxy
	// Assets holds the built frontend. Nil uses the embedded placeholder.
	Assets fs.FS
	// Overlay enables the error overlay in the live-reload client.
	Overlay bool
}

// Server is the frontend dev server: it serves page routes from the route
// table, proxies the backend prefix, and pushes live-reload events.
type Server struct {
	opts      Options
	collector *metrics.Collector
	logger    zerolog.Logger
	hub       *Hub
	assets    fs.FS
	srv       *http.Server
}

// New creates a new Server.
func New(opts Options, collector *metrics.Collector, logger zerolog.Logger) (*Server, error) {
	if opts.Routes == nil {
		return nil, errors.New("route table is required")
	}
	assets := opts.Assets
	if assets == nil {
		sub, err := fs.Sub(distFS, "dist")
		if err != nil {
			return nil, fmt.Errorf("embed fs: %w", err)
		}
		assets = sub
	}

	stats := make([]metrics.RouteStat, 0, opts.Routes.Len())
	for _, e := range opts.Routes.Entries() {
		stats = append(stats, metrics.RouteStat{Name: e.Name, Pattern: e.Pattern, Target: e.Target, Redirect: e.Redirect})
	}
	collector.SetRoutes(stats)
	if opts.Proxy != nil {
		collector.SetProxyTarget(opts.Proxy.Rule().Target)
	}

	return &Server{
		opts:      opts,
		collector: collector,
		logger:    logger.With().Str("component", "dev-server").Logger(),
		hub:       newHub(collector, logger),
		assets:    assets,
	}, nil
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Reload is a watch callback broadcasting a page reload.
func (s *Server) Reload(changes []watch.Change) {
	s.hub.Reload(changes)
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	h := &handlers{collector: s.collector, routes: s.opts.Routes}

	mux := http.NewServeMux()

	// Dev endpoints.
	mux.HandleFunc("GET /__dev/status", h.status)
	mux.HandleFunc("GET /__dev/routes", h.routeTable)
	mux.HandleFunc("GET /__dev/logs", h.logs)
	mux.HandleFunc("GET /__dev/resolve", h.resolve)
	mux.HandleFunc("GET /__dev/client.js", s.client)
	mux.HandleFunc("/__dev/ws", s.hub.handleWS)
	mux.HandleFunc("/__dev/events", s.hub.handleEvents)

	// Pages and assets.
	mux.Handle("/", s.spa())

	// The proxy sits in front of the mux, which would clean the path and
	// redirect instead of forwarding it as sent.
	p := s.opts.Proxy
	if p == nil {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.Matches(r.URL.Path) {
			p.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) client(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(strings.Replace(clientJS, "__OVERLAY__", strconv.FormatBool(s.opts.Overlay), 1)))
}

// Start begins serving. It blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:    net.JoinHostPort(s.opts.Listen, strconv.Itoa(s.opts.Port)),
		Handler: s.Handler(),
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	s.collector.SetPhase("serving")
	s.logger.Info().Str("addr", s.srv.Addr).Msg("starting dev server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.collector.SetPhase("stopped")
		s.hub.closeAll()
		return s.srv.Close()
	case err := <-errCh:
		s.collector.SetPhase("failed")
		s.collector.RecordError(err)
		return err
	}
}

// StartBackground starts the server in a goroutine (non-blocking).
func (s *Server) StartBackground(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Err(err).Msg("dev server error")
		}
	}()
}
