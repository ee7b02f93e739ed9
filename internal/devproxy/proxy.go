// Package devproxy forwards a path prefix of the dev server to the backend.
package devproxy

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries a per-request id to the backend.
const RequestIDHeader = "X-Request-Id"

// Rule describes which requests are proxied and how.
type Rule struct {
	Prefix string
	Target string
	// ChangeOrigin rewrites Host and Origin to the target's origin.
	ChangeOrigin bool
	// Secure enables TLS certificate verification on the proxy hop.
	Secure bool
}

// Recorder receives proxy outcomes. *metrics.Collector satisfies it.
type Recorder interface {
	RecordProxied(bytes int64)
	RecordProxyError(err error)
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger.With().Str("component", "dev-proxy").Logger()
	}
}

// WithRecorder reports each proxied request to r.
func WithRecorder(r Recorder) Option {
	return func(p *Proxy) {
		p.recorder = r
	}
}

// WithTransport replaces the upstream transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Proxy) {
		p.transport = rt
	}
}

// Proxy is an http.Handler forwarding matching requests to the rule's target.
type Proxy struct {
	rule      Rule
	target    *url.URL
	logger    zerolog.Logger
	recorder  Recorder
	transport http.RoundTripper
	rp        *httputil.ReverseProxy
}

// New builds a Proxy for rule.
func New(rule Rule, opts ...Option) (*Proxy, error) {
	if !strings.HasPrefix(rule.Prefix, "/") {
		return nil, fmt.Errorf("proxy prefix %q must start with /", rule.Prefix)
	}
	prefix := strings.TrimRight(rule.Prefix, "/")
	if prefix == "" {
		return nil, fmt.Errorf("proxy prefix %q would capture every path", rule.Prefix)
	}
	rule.Prefix = prefix

	target, err := url.Parse(rule.Target)
	if err != nil {
		return nil, fmt.Errorf("parse proxy target: %w", err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("proxy target %q must be an http(s) origin", rule.Target)
	}

	p := &Proxy{
		rule:   rule,
		target: target,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.transport == nil {
		p.transport = newTransport(rule.Secure)
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		Transport:      p.transport,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.errorHandler,
	}
	return p, nil
}

// Rule returns the rule the proxy was built from.
func (p *Proxy) Rule() Rule {
	return p.rule
}

// Matches reports whether path falls under the proxy prefix.
func (p *Proxy) Matches(path string) bool {
	return path == p.rule.Prefix || strings.HasPrefix(path, p.rule.Prefix+"/")
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !p.Matches(r.URL.Path) {
		http.NotFound(w, r)
		return
	}
	p.rp.ServeHTTP(w, r)
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.target)
	pr.SetXForwarded()

	if p.rule.ChangeOrigin {
		// SetURL already cleared Out.Host, so the target host is sent.
		if pr.In.Header.Get("Origin") != "" {
			pr.Out.Header.Set("Origin", p.target.Scheme+"://"+p.target.Host)
		}
	} else {
		pr.Out.Host = pr.In.Host
	}

	if pr.Out.Header.Get(RequestIDHeader) == "" {
		pr.Out.Header.Set(RequestIDHeader, uuid.NewString())
	}
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	if p.recorder != nil {
		p.recorder.RecordProxied(resp.ContentLength)
	}
	p.logger.Debug().
		Str("method", resp.Request.Method).
		Str("path", resp.Request.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", resp.Request.Header.Get(RequestIDHeader)).
		Msg("proxied")
	return nil
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
		// Client went away; nothing to answer.
		return
	}
	if p.recorder != nil {
		p.recorder.RecordProxyError(err)
	}
	p.logger.Warn().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("target", p.target.String()).
		Msg("proxy request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": fmt.Sprintf("proxy to %s failed: %v", p.target.Host, err),
	})
}

func newTransport(secure bool) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !secure}, //nolint:gosec
	}
}
