// Package api is the module guide backend: catalog search and module
// details as JSON under /api, plus Prometheus metrics.
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfoltran/moduleguide/internal/catalog"
)

// Options configures the backend server.
type Options struct {
	Listen string
	Port   int
	// AllowedOrigin is the frontend origin granted CORS access.
	AllowedOrigin string
	// Checks are run by /readyz.
	Checks []Check
}

// Check is a named dependency probe, such as a database ping.
type Check struct {
	Name string
	Ping func(context.Context) error
}

type Server struct {
	opts    Options
	catalog catalog.Catalog
	logger  zerolog.Logger
	metrics *metrics
	srv     *http.Server
}

func New(opts Options, cat catalog.Catalog, logger zerolog.Logger) *Server {
	return &Server{
		opts:    opts,
		catalog: cat,
		logger:  logger.With().Str("component", "api").Logger(),
		metrics: newMetrics(),
	}
}

// Handler builds the request router with its middleware chain.
func (s *Server) Handler() http.Handler {
	h := &handlers{catalog: s.catalog, checks: s.opts.Checks, logger: s.logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("GET /api/searchModulesByCode/{code}", h.searchByCode)
	mux.HandleFunc("GET /api/searchModules", h.searchModules)
	mux.HandleFunc("GET /api/courses", h.courses)
	mux.HandleFunc("GET /api/getModuleInfo/{id}", h.moduleInfo)
	mux.HandleFunc("GET /api/user", h.user)
	mux.Handle("GET /metrics", s.metrics.handler())
	mux.HandleFunc("GET /readyz", h.ready)

	var handler http.Handler = mux
	handler = s.metrics.instrument(handler)
	handler = trimSlash(handler)
	handler = cors(s.opts.AllowedOrigin)(handler)
	handler = requestLog(s.logger)(handler)
	return handler
}

// Start begins serving. It blocks until the context is cancelled, then
// drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              net.JoinHostPort(s.opts.Listen, strconv.Itoa(s.opts.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	s.logger.Info().Str("addr", s.srv.Addr).Str("cors_origin", s.opts.AllowedOrigin).Msg("starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
