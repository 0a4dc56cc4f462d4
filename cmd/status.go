package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	statusadapter "github.com/bnema/healthline/internal/adapters/render/status"
	"github.com/bnema/healthline/internal/domain"
)

func newStatusCmd(app *app) *cobra.Command {
	var sessionID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded state of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := app.health.Snapshot(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			return writeSnapshotOutput(cmd, app, snap, asJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (default: most recently updated)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func writeSnapshotOutput(cmd *cobra.Command, app *app, snap *domain.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	rendered, err := app.statusRenderer(snap, statusadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
