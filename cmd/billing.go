package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/healthline/internal/application"
	"github.com/bnema/healthline/internal/billing"
)

func newBillingCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Refresh locally priced spend",
	}

	cmd.AddCommand(newBillingRefreshCmd(app))

	return cmd
}

func newBillingRefreshCmd(app *app) *cobra.Command {
	var background bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Price today's transcripts and rewrite the billing cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := application.RefreshOptions{Background: background}

			var sum billing.Summary
			run := func(ctx context.Context, _ func(application.RefreshProgress)) error {
				s, err := app.billing.Refresh(ctx, opts)
				sum = s
				return err
			}

			if background || asJSON {
				if err := run(cmd.Context(), nil); err != nil {
					return err
				}
			} else if err := runWithProgress(cmd.Context(), cmd.ErrOrStderr(), "Pricing transcripts", run); err != nil {
				return err
			}

			if background {
				return nil
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}

			b := billing.Apply(sum, app.cfg.Budget, app.now())
			line := fmt.Sprintf("%s: $%.2f today, $%.2f/h", sum.Day, b.CostToday, b.BurnRatePerHour)
			if app.cfg.Budget.DailyUSD > 0 {
				line += fmt.Sprintf(", %d%% of $%.2f", b.BudgetPercentUsed, app.cfg.Budget.DailyUSD)
			}
			_, err := fmt.Fprintln(out, line)
			return err
		},
	}

	cmd.Flags().BoolVar(&background, "background", false, "Run as a detached refresher that inherits the refresh lock")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.Flags().MarkHidden("background")

	return cmd
}
