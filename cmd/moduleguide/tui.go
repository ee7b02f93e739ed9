package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfoltran/moduleguide/internal/tui"
)

var tuiAddr string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch terminal dashboard",
	Long: `TUI starts a Bubble Tea dashboard for a running dev server. It polls
the server's /__dev/status and /__dev/logs endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := tuiAddr
		if addr == "" {
			addr = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}
		return tui.Run(tui.NewRemoteSource(addr), "moduleguide "+addr)
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiAddr, "addr", "", "Dev server address (default http://localhost:<server.port>)")
	rootCmd.AddCommand(tuiCmd)
}
