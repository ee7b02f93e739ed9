package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults mirrors the frontend's dev server setup: port 5173, /api proxied
// to http://backend:5000 with origin rewriting and no TLS verification,
// and 1s polling that skips dependencies, the config file and env files.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Listen: "0.0.0.0",
			Port:   5173,
		},
		Proxy: ProxyConfig{
			Prefix:       "/api",
			Target:       "http://backend:5000",
			ChangeOrigin: true,
			Secure:       false,
		},
		Watch: WatchConfig{
			Root:       ".",
			UsePolling: true,
			IntervalMS: 1000,
			Ignored:    []string{"**/node_modules/**", "**/vite.config.js", "**/moduleguide.toml", "**/.env"},
		},
		HMR: HMRConfig{
			Overlay: true,
		},
		Frontend: FrontendConfig{
			Dist:         "frontend/dist",
			RouteVersion: 4,
		},
		API: APIConfig{
			Listen: "0.0.0.0",
			Port:   5000,
		},
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/moduleguide?sslmode=disable",
		},
		Cache: CacheConfig{
			Addr:       "localhost:6379",
			TTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads defaults, then the TOML file at path (or the first one found),
// then the environment. The shared .env at the repository root is loaded
// into the process environment first; variables already set win.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := LoadEnvFile(""); err != nil {
		return cfg, err
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// LoadEnvFile loads <repo root>/.env, falling back to ./.env. The start
// directory defaults to the working directory. A missing file is not an error.
func LoadEnvFile(start string) error {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		start = wd
	}

	candidates := []string{".env"}
	if root := RepoRoot(start); root != "" {
		candidates = []string{filepath.Join(root, ".env"), filepath.Join(start, ".env")}
	}

	for _, p := range candidates {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// RepoRoot returns the nearest ancestor of dir containing .git or go.mod,
// or "" when there is none.
func RepoRoot(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		for _, marker := range []string{".git", "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func findConfigFile() string {
	candidates := []string{"moduleguide.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".moduleguide", "config.toml"))
	}
	candidates = append(candidates, "/etc/moduleguide/config.toml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VITE_BACKEND_URL"); v != "" {
		cfg.Proxy.Target = v
	}
	if v := os.Getenv("MODULEGUIDE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("FRONTEND_ADDRESS"); v != "" {
		cfg.API.FrontendAddress = v
	}
	if v := os.Getenv("FRONTEND_PORT"); v != "" {
		cfg.API.FrontendPort = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("MODULEGUIDE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MODULEGUIDE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
