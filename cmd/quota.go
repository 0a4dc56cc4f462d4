package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bnema/healthline/internal/application"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/quota"
)

func newQuotaCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and refresh per-slot usage quota",
	}

	cmd.AddCommand(
		newQuotaShowCmd(app),
		newQuotaResolveCmd(app),
		newQuotaRefreshCmd(app),
	)

	return cmd
}

func newQuotaShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show every slot from the quota cache, best first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.quota.Cache(cmd.Context())
			if err != nil {
				return err
			}
			return writeQuotaCache(cmd.OutOrStdout(), c, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newQuotaResolveCmd(app *app) *cobra.Command {
	var req quota.Request
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which slot a session resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.ConfigDir == "" {
				req.ConfigDir = os.Getenv("CLAUDE_CONFIG_DIR")
			}

			res, message, err := app.quota.Resolve(cmd.Context(), req)
			if err != nil {
				if errors.Is(err, domain.ErrNoResolution) {
					return fmt.Errorf("%w: run `healthline quota refresh` after adding slots", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Resolution    quota.Resolution
					SwitchMessage string `json:",omitempty"`
				}{res, message})
			}

			stale := ""
			if res.IsStale {
				stale = " [stale]"
			}
			if _, err := fmt.Fprintf(out, "slot %s via %s (%s): 5h %.0f%%, 7d %.0f%%%s\n",
				res.SlotID, res.Strategy, res.Status, res.Slot.FiveHourPercent, res.Slot.SevenDayPercent, stale); err != nil {
				return err
			}
			if message != "" {
				_, err = fmt.Fprintln(out, message)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&req.ConfigDir, "config-dir", "", "Assistant config dir (default: $CLAUDE_CONFIG_DIR)")
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newQuotaRefreshCmd(app *app) *cobra.Command {
	var slotIDs []string
	var background bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch usage for every slot and rewrite the quota cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := application.RefreshOptions{Background: background}

			var refreshed domain.QuotaCache
			run := func(ctx context.Context, report func(application.RefreshProgress)) error {
				runOpts := opts
				runOpts.Progress = report
				c, err := app.quota.Refresh(ctx, slotIDs, runOpts)
				refreshed = c
				return err
			}

			if background || asJSON {
				if err := run(cmd.Context(), nil); err != nil {
					return err
				}
			} else if err := runWithProgress(cmd.Context(), cmd.ErrOrStderr(), "Fetching slot usage", run); err != nil {
				return err
			}

			if background {
				return nil
			}
			return writeQuotaCache(cmd.OutOrStdout(), refreshed, asJSON)
		},
	}

	cmd.Flags().StringSliceVar(&slotIDs, "slot", nil, "Slot ID to refresh (repeatable, default: all)")
	cmd.Flags().BoolVar(&background, "background", false, "Run as a detached refresher that inherits the refresh lock")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.Flags().MarkHidden("background")

	return cmd
}

func writeQuotaCache(out io.Writer, c domain.QuotaCache, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	if len(c.Slots) == 0 {
		_, err := fmt.Fprintln(out, "no slots in quota cache")
		return err
	}

	slots := make([]domain.QuotaSlot, 0, len(c.Slots))
	for _, slot := range c.Slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Rank != slots[j].Rank {
			return slots[i].Rank < slots[j].Rank
		}
		return slots[i].ID < slots[j].ID
	})

	for _, slot := range slots {
		marks := ""
		if slot.ID == c.ActiveSlot {
			marks += " *active"
		}
		if slot.ID == c.RecommendedSlot {
			marks += " *recommended"
		}
		line := fmt.Sprintf("%d. %s (%s) 5h %.0f%% 7d %.0f%% %s%s", slot.Rank, slot.ID, slot.Status, slot.FiveHourPercent, slot.SevenDayPercent, slot.Email, marks)
		if slot.Error != "" {
			line += " error: " + slot.Error
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}

	switch {
	case c.AllExhausted:
		_, err := fmt.Fprintln(out, "all slots exhausted")
		return err
	case c.FailoverNeeded:
		_, err := fmt.Fprintf(out, "failover advised: switch to %s\n", c.RecommendedSlot)
		return err
	}
	return nil
}
