package main

import (
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfoltran/moduleguide/internal/daemon"
	"github.com/jfoltran/moduleguide/internal/metrics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dev server's last known state",
	Long:  `Status reads the state file the dev server writes every two seconds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if d, err := daemon.Default("dev"); err == nil {
			if pid, running := d.IsRunning(); running {
				fmt.Fprintf(out, "Background: running (pid %d, logs %s)\n", pid, d.LogPath())
			}
		}

		file, err := metrics.DefaultStateFile()
		if err != nil {
			return err
		}
		st, err := file.Read()
		if err != nil {
			fmt.Fprintln(out, "No dev server state found. Is `moduleguide dev` running?")
			fmt.Fprintf(out, "  (error: %v)\n", err)
			return nil
		}
		if !processAlive(st.PID) {
			fmt.Fprintf(out, "Dev server (pid %d) has exited; showing its last state.\n", st.PID)
		}
		printStatus(out, &st.Snapshot, time.Now())
		return nil
	},
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func printStatus(w io.Writer, snap *metrics.Snapshot, now time.Time) {
	stale := ""
	if age := now.Sub(snap.Timestamp); age > 10*time.Second {
		stale = fmt.Sprintf(" (stale, %s ago)", age.Truncate(time.Second))
	}

	fmt.Fprintf(w, "Phase:      %s%s\n", snap.Phase, stale)
	fmt.Fprintf(w, "Uptime:     %.0fs\n", snap.ElapsedSec)
	fmt.Fprintf(w, "Pages:      %d served, %d unmatched\n", snap.PageRequests, snap.UnmatchedCount)
	if snap.ProxyTarget != "" {
		fmt.Fprintf(w, "Proxy:      %s  %d requests, %d errors, %d bytes\n",
			snap.ProxyTarget, snap.ProxyRequests, snap.ProxyErrors, snap.ProxyBytes)
	}
	fmt.Fprintf(w, "Reloads:    %d  (%d clients)\n", snap.Reloads, snap.Clients)

	if snap.ErrorCount > 0 {
		fmt.Fprintf(w, "Errors:     %d (last: %s)\n", snap.ErrorCount, snap.LastError)
	}

	if len(snap.Routes) > 0 {
		fmt.Fprintln(w, "\nRoutes:")
		for _, r := range snap.Routes {
			name := r.Name
			if r.Redirect != "" {
				name = "-> " + r.Redirect
			}
			fmt.Fprintf(w, "  %-24s %-20s %6d hits\n", r.Pattern, name, r.Hits)
		}
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
