package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show or clear the diagnostic event log",
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().Bool("clear", false, "Delete all recorded events")
	eventsCmd.Flags().String("format", formatTable, "Output format (table or json)")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}

	env, err := newEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if clearLog, _ := cmd.Flags().GetBool("clear"); clearLog {
		if err := env.store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear events: %w", err)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "Event log cleared")
		return err
	}

	list, err := env.store.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), list)
	}
	return renderEvents(cmd.OutOrStdout(), list)
}
