package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List Home Assistant servers on the local network",
	Long: `Browse the local network for Home Assistant servers for a fixed window and print
what was found, sorted by name.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Duration("window", 0, "How long to collect announcements (default from config, 5s)")
	discoverCmd.Flags().Bool("dedupe", false, "Drop servers announcing an already listed base URL")
	discoverCmd.Flags().String("format", formatTable, "Output format (table or json)")
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}
	window, _ := cmd.Flags().GetDuration("window")
	dedupe, _ := cmd.Flags().GetBool("dedupe")

	env, err := newEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	collector, err := env.newCollector(window, dedupe)
	if err != nil {
		return err
	}

	slog.Debug("Discovering Home Assistant servers", "window", window)
	instances, err := collector.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), instances)
	}
	return renderInstances(cmd.OutOrStdout(), instances)
}
