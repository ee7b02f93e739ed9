package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfoltran/moduleguide/internal/api"
	"github.com/jfoltran/moduleguide/internal/cache"
	"github.com/jfoltran/moduleguide/internal/catalog"
	"github.com/jfoltran/moduleguide/internal/db"
)

var (
	apiPort       int
	apiFlushCache bool
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the module guide backend",
	Long: `API serves catalog search, courses and per-year module details under
/api, backed by PostgreSQL (DATABASE_URL). With REDIS_ADDR set, responses
are cached in Redis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		d, err := db.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := cache.New(ctx, cache.Options{
			Enabled: cfg.Cache.Enabled,
			Addr:    cfg.Cache.Addr,
			TTL:     cfg.Cache.TTL(),
			Prefix:  "moduleguide:",
		}, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		if apiFlushCache && c.Enabled() {
			if err := c.Delete(ctx, "*"); err != nil {
				return fmt.Errorf("flush cache: %w", err)
			}
			logger.Info().Msg("cache flushed")
		}

		checks := []api.Check{{Name: "database", Ping: d.Ping}}
		if c.Enabled() {
			checks = append(checks, api.Check{Name: "cache", Ping: c.Ping})
		}

		var cat catalog.Catalog = catalog.NewStore(d.Pool)
		if c.Enabled() {
			cat = catalog.NewCached(cat, c, logger)
		}

		srv := api.New(api.Options{
			Listen:        cfg.API.Listen,
			Port:          cfg.API.Port,
			AllowedOrigin: cfg.API.AllowedOrigin(),
			Checks:        checks,
		}, cat, logger)
		return srv.Start(ctx)
	},
}

func init() {
	apiCmd.Flags().IntVar(&apiPort, "port", 5000, "Backend port (PORT overrides the config file)")
	apiCmd.Flags().BoolVar(&apiFlushCache, "flush-cache", false, "Drop cached catalog responses before serving")
	commandFlagHooks[apiCmd] = func(cmd *cobra.Command) error {
		if cmd.Flags().Changed("port") {
			cfg.API.Port = apiPort
		}
		return nil
	}
	rootCmd.AddCommand(apiCmd)
}
