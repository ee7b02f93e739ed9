package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jfoltran/moduleguide/internal/config"
)

var (
	cfg        config.Config
	logger     zerolog.Logger
	logOutput  io.Writer
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "moduleguide",
	Short: "Module guide dev server and backend",
	Long: `moduleguide serves the module guide frontend during development and runs
its backend. The dev server resolves page routes from the versioned route
table, proxies /api to the backend, and live-reloads browsers when files
change. The backend answers catalog queries from PostgreSQL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Logging.Format = logFormat
		}
		if err := applyCommandFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logOutput = newLogOutput(cfg.Logging.Format)
		logger = newLogger(logOutput, cfg.Logging.Level)
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "Config file (default: ./moduleguide.toml, ~/.moduleguide/config.toml)")
	f.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
}

// commandFlagHooks lets subcommands copy their explicitly set flags into
// cfg after the config file and environment are applied.
var commandFlagHooks = map[*cobra.Command]func(*cobra.Command) error{}

func applyCommandFlags(cmd *cobra.Command) error {
	if hook, ok := commandFlagHooks[cmd]; ok {
		return hook(cmd)
	}
	return nil
}

func newLogOutput(format string) io.Writer {
	if format == "json" {
		return os.Stdout
	}
	// A detached dev server writes to a log file, which should not get
	// colour escapes.
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	}
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	l := zerolog.New(w).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return l.Level(lvl)
}
