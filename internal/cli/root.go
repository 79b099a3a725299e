// Package cli implements the ferret-hunt command line
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/digggggmori-pixel/ferret-hunt/internal/scan"
	"github.com/spf13/cobra"
)

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRoot(scan.Version).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// NewRoot builds the command tree
func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ferret-hunt",
		Short:         "ferret-hunt: hunt for persistence on Windows hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("ferret-hunt {{.Version}}\n")

	cmd.PersistentFlags().String("config", getenvDefault("FERRET_HUNT_CONFIG", ""), "Path to "+configFileHint)
	cmd.PersistentFlags().String("snapshot", "", "Hunt an exported registry snapshot (YAML) instead of the live registry")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Also list informational detections")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newMonitorCmd())
	cmd.AddCommand(newHuntsCmd())
	cmd.AddCommand(newReportCmd())

	return cmd
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
