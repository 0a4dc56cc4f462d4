package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIntentCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Inspect refresh intents shared between processes",
	}

	cmd.AddCommand(
		newIntentListCmd(app),
		newIntentSignalCmd(app),
		newIntentCleanCmd(app),
	)

	return cmd
}

func newIntentListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories waiting for a refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			pending := app.coordinator.PendingIntents()
			if len(pending) == 0 {
				_, err := fmt.Fprintln(out, "no pending intents")
				return err
			}

			for _, category := range pending {
				line := category
				if age, ok := app.coordinator.IntentAge(category); ok {
					line += fmt.Sprintf(" (for %s)", age.Round(time.Second))
				}
				if app.coordinator.IsRefreshInProgress(category) {
					line += " refreshing"
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newIntentSignalCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signal <category>",
		Short: "Ask background refreshers for fresh data in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.coordinator.SignalRefreshIntent(args[0]); err != nil {
				return fmt.Errorf("signal intent: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "signalled %s\n", args[0])
			return err
		},
	}
}

func newIntentCleanCmd(app *app) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Drop expired intents and locks left by dead refreshers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxAge <= 0 {
				maxAge = app.cfg.Intents.MaxAge
			}

			removed, err := app.coordinator.CleanStale(maxAge)
			for _, name := range removed {
				if _, writeErr := fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name); writeErr != nil {
					return writeErr
				}
			}
			if err != nil {
				return fmt.Errorf("clean intents: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Drop intents older than this (default: intents.max_age)")

	return cmd
}
