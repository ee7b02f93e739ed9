package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServerConfig holds settings for the frontend dev server.
type ServerConfig struct {
	Listen string `toml:"listen"`
	Port   int    `toml:"port"`
}

// ProxyConfig describes the dev proxy rule forwarding a path prefix to the backend.
type ProxyConfig struct {
	Prefix       string `toml:"prefix"`
	Target       string `toml:"target"`
	ChangeOrigin bool   `toml:"change_origin"`
	Secure       bool   `toml:"secure"`
}

// WatchConfig holds file-watch settings for live reload.
type WatchConfig struct {
	Root       string   `toml:"root"`
	UsePolling bool     `toml:"use_polling"`
	IntervalMS int      `toml:"interval_ms"`
	Ignored    []string `toml:"ignored"`
}

// Interval returns the polling interval as a duration.
func (w WatchConfig) Interval() time.Duration {
	return time.Duration(w.IntervalMS) * time.Millisecond
}

// HMRConfig controls the live-reload client.
type HMRConfig struct {
	Overlay bool `toml:"overlay"`
}

// FrontendConfig selects the built assets and the route table version.
type FrontendConfig struct {
	Dist         string `toml:"dist"`
	RouteVersion int    `toml:"route_version"`
}

// APIConfig holds settings for the module guide backend.
type APIConfig struct {
	Listen          string `toml:"listen"`
	Port            int    `toml:"port"`
	FrontendAddress string `toml:"frontend_address"`
	FrontendPort    string `toml:"frontend_port"`
}

// AllowedOrigin is the single origin the backend accepts cross-origin
// requests from. Empty when no frontend address is configured.
func (a APIConfig) AllowedOrigin() string {
	if a.FrontendAddress == "" {
		return ""
	}
	if a.FrontendPort == "" {
		return "http://" + a.FrontendAddress
	}
	return fmt.Sprintf("http://%s:%s", a.FrontendAddress, a.FrontendPort)
}

// DatabaseConfig holds the PostgreSQL connection URL.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// CacheConfig holds settings for the optional Redis response cache.
type CacheConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LoggingConfig holds settings for structured logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Config is the top-level configuration for moduleguide.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Watch    WatchConfig    `toml:"watch"`
	HMR      HMRConfig      `toml:"hmr"`
	Frontend FrontendConfig `toml:"frontend"`
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Cache    CacheConfig    `toml:"cache"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Validate checks that required fields are present and values are sane.
// Zero values with a sensible default are filled in.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api port %d out of range", c.API.Port))
	}

	if !strings.HasPrefix(c.Proxy.Prefix, "/") {
		errs = append(errs, fmt.Errorf("proxy prefix %q must start with /", c.Proxy.Prefix))
	} else if strings.Trim(c.Proxy.Prefix, "/") == "" {
		errs = append(errs, fmt.Errorf("proxy prefix %q would capture every path", c.Proxy.Prefix))
	}
	if c.Proxy.Target == "" {
		errs = append(errs, errors.New("proxy target is required"))
	} else if u, err := url.Parse(c.Proxy.Target); err != nil {
		errs = append(errs, fmt.Errorf("invalid proxy target: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("proxy target %q must be an http(s) origin", c.Proxy.Target))
	}

	if c.Watch.IntervalMS < 1 {
		c.Watch.IntervalMS = 1000
	}
	if c.Watch.Root == "" {
		c.Watch.Root = "."
	}
	if c.Frontend.RouteVersion == 0 {
		c.Frontend.RouteVersion = 4
	}
	if c.Frontend.RouteVersion < 1 || c.Frontend.RouteVersion > 4 {
		errs = append(errs, fmt.Errorf("route version %d out of range (1-4)", c.Frontend.RouteVersion))
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, errors.New("cache address is required when the cache is enabled"))
	}
	if c.Cache.TTLSeconds < 1 {
		c.Cache.TTLSeconds = 300
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	} else if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("unknown log level %q (expected trace, debug, info, warn, error)", c.Logging.Level))
	}

	switch c.Logging.Format {
	case "json", "console":
	case "":
		c.Logging.Format = "console"
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (expected console or json)", c.Logging.Format))
	}

	return errors.Join(errs...)
}
