package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfoltran/moduleguide/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a dev server started with --detach",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.Default("dev")
		if err != nil {
			return err
		}
		pid, _ := d.ReadPID()
		if err := d.Stop(30 * time.Second); err != nil {
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "No background dev server is running.")
				return nil
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped dev server (pid %d)\n", pid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
