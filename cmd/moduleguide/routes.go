package main

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jfoltran/moduleguide/internal/routes"
)

var routesVersion int

var routesCmd = &cobra.Command{
	Use:   "routes [path...]",
	Short: "Print the route table or resolve paths",
	Long: `Routes prints the page route table for a version. Given paths, it
resolves each one and prints the matched route, target and params instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		version := cfg.Frontend.RouteVersion
		if cmd.Flags().Changed("version") {
			version = routesVersion
		}
		table, err := routes.Version(version)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			printTable(out, version, table)
			return nil
		}
		for _, p := range args {
			printResolve(out, table, p)
		}
		return nil
	},
}

func printTable(w io.Writer, version int, table *routes.Table) {
	fmt.Fprintf(w, "Route table v%d\n", version)
	for _, e := range table.Entries() {
		if e.IsRedirect() {
			fmt.Fprintf(w, "  %-24s redirect -> %s\n", e.Pattern, e.Redirect)
			continue
		}
		props := ""
		if e.PropsFromPath {
			props = "  (props)"
		}
		fmt.Fprintf(w, "  %-24s %-10s %s%s\n", e.Pattern, e.Name, e.Target, props)
	}
}

func printResolve(w io.Writer, table *routes.Table, path string) {
	m, ok := table.Resolve(path)
	switch {
	case !ok:
		fmt.Fprintf(w, "%-24s no match\n", path)
	case m.Entry.IsRedirect():
		fmt.Fprintf(w, "%-24s redirect -> %s\n", path, m.Entry.Redirect)
	default:
		params := url.Values{}
		for k, v := range m.Params {
			params.Set(k, v)
		}
		fmt.Fprintf(w, "%-24s %-10s %s %s\n", path, m.Entry.Name, m.Entry.Target, params.Encode())
	}
}

func init() {
	routesCmd.Flags().IntVar(&routesVersion, "version", 4, "Route table version (1-4)")
	rootCmd.AddCommand(routesCmd)
}
