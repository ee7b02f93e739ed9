package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfoltran/moduleguide/internal/daemon"
	"github.com/jfoltran/moduleguide/internal/devproxy"
	"github.com/jfoltran/moduleguide/internal/metrics"
	"github.com/jfoltran/moduleguide/internal/routes"
	"github.com/jfoltran/moduleguide/internal/server"
	"github.com/jfoltran/moduleguide/internal/tui"
	"github.com/jfoltran/moduleguide/internal/watch"
)

var (
	devPort         int
	devRouteVersion int
	devDist         string
	devTarget       string
	devNoWatch      bool
	devTUI          bool
	devDetach       bool
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Start the frontend dev server",
	Long: `Dev serves the frontend on port 5173. Page paths resolve through the
route table, /api is proxied to the backend, and browsers reload when files
under the watch root change (polled every second).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if devDetach && !daemon.IsDaemonProcess() {
			return detachDev(cmd.OutOrStdout())
		}
		if daemon.IsDaemonProcess() {
			d, err := daemon.Default("dev")
			if err != nil {
				return err
			}
			if err := d.WritePID(); err != nil {
				return fmt.Errorf("write pid file: %w", err)
			}
			defer d.RemovePID()
		}

		table, err := routes.Version(cfg.Frontend.RouteVersion)
		if err != nil {
			return err
		}

		collector := metrics.NewCollector(logger)
		defer collector.Close()

		// Mirror logs into the collector for /__dev/logs and the dashboard.
		// The dashboard owns the terminal, so console output is dropped there.
		var out io.Writer = logOutput
		if devTUI {
			out = io.Discard
		}
		log := logger.Output(zerolog.MultiLevelWriter(out, metrics.NewLogWriter(collector)))

		proxy, err := devproxy.New(devproxy.Rule{
			Prefix:       cfg.Proxy.Prefix,
			Target:       cfg.Proxy.Target,
			ChangeOrigin: cfg.Proxy.ChangeOrigin,
			Secure:       cfg.Proxy.Secure,
		}, devproxy.WithLogger(log), devproxy.WithRecorder(collector))
		if err != nil {
			return fmt.Errorf("dev proxy: %w", err)
		}

		assets, err := frontendAssets(cfg.Frontend.Dist)
		if err != nil {
			return err
		}
		if assets == nil {
			log.Warn().Str("dist", cfg.Frontend.Dist).Msg("frontend build not found, serving placeholder")
		}

		srv, err := server.New(server.Options{
			Listen:  cfg.Server.Listen,
			Port:    cfg.Server.Port,
			Routes:  table,
			Proxy:   proxy,
			Assets:  assets,
			Overlay: cfg.HMR.Overlay,
		}, collector, log)
		if err != nil {
			return err
		}

		if stateFile, err := metrics.DefaultStateFile(); err != nil {
			log.Warn().Err(err).Msg("state file disabled")
		} else {
			sp := metrics.NewStatePersister(collector, stateFile, log)
			sp.Start(ctx)
			defer sp.Stop()
		}

		if cfg.Watch.UsePolling {
			w := watch.New(cfg.Watch.Root,
				watch.WithInterval(cfg.Watch.Interval()),
				watch.WithIgnored(cfg.Watch.Ignored...),
				watch.WithLogger(log))
			go func() {
				if err := w.Run(ctx, srv.Reload); err != nil && !errors.Is(err, ctx.Err()) {
					log.Err(err).Msg("watcher stopped")
					collector.RecordError(err)
					srv.Hub().Error(err.Error())
				}
			}()
		} else {
			log.Info().Msg("file watching disabled")
		}

		log.Info().
			Int("route_version", cfg.Frontend.RouteVersion).
			Str("proxy", cfg.Proxy.Prefix+" -> "+cfg.Proxy.Target).
			Msg("dev server configured")

		if devTUI {
			srv.StartBackground(ctx)
			return tui.Run(tui.LocalSource{Collector: collector}, "moduleguide dev")
		}
		return srv.Start(ctx)
	},
}

// detachDev restarts this command in the background and returns once the
// child is started.
func detachDev(w io.Writer) error {
	if devTUI {
		return errors.New("--detach and --tui cannot be combined")
	}
	d, err := daemon.Default("dev")
	if err != nil {
		return err
	}
	if pid, running := d.IsRunning(); running {
		return fmt.Errorf("dev server already running (pid %d)", pid)
	}
	pid, err := d.Background(daemon.StripFlag(os.Args[1:], "detach", "d"))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Dev server started in background (pid %d)\n", pid)
	fmt.Fprintf(w, "  logs: %s\n", d.LogPath())
	fmt.Fprintln(w, "  stop: moduleguide stop")
	return nil
}

// frontendAssets returns the built frontend at dist, or nil when it has
// not been built yet.
func frontendAssets(dist string) (fs.FS, error) {
	info, err := os.Stat(dist)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("frontend dist %s: %w", dist, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frontend dist %s is not a directory", dist)
	}
	return os.DirFS(dist), nil
}

func init() {
	f := devCmd.Flags()
	f.IntVar(&devPort, "port", 5173, "Dev server port")
	f.IntVar(&devRouteVersion, "route-version", 4, "Route table version (1-4)")
	f.StringVar(&devDist, "dist", "", "Built frontend directory")
	f.StringVar(&devTarget, "target", "", "Backend origin for the /api proxy")
	f.BoolVar(&devNoWatch, "no-watch", false, "Disable file watching")
	f.BoolVar(&devTUI, "tui", false, "Show the terminal dashboard")
	f.BoolVarP(&devDetach, "detach", "d", false, "Run in the background")

	commandFlagHooks[devCmd] = func(cmd *cobra.Command) error {
		f := cmd.Flags()
		if f.Changed("port") {
			cfg.Server.Port = devPort
		}
		if f.Changed("route-version") {
			cfg.Frontend.RouteVersion = devRouteVersion
		}
		if f.Changed("dist") {
			cfg.Frontend.Dist = devDist
		}
		if f.Changed("target") {
			cfg.Proxy.Target = devTarget
		}
		if devNoWatch {
			cfg.Watch.UsePolling = false
		}
		return nil
	}
	rootCmd.AddCommand(devCmd)
}
