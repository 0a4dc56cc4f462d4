package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/healthline/internal/application"
	"github.com/bnema/healthline/internal/domain"
)

const maxInputBytes = 1 << 20

func newStatuslineCmd(app *app) *cobra.Command {
	var req application.GatherRequest

	cmd := &cobra.Command{
		Use:   "statusline",
		Short: "Gather session health and print the status line",
		Long:  "statusline reads the assistant's status line JSON on stdin, gathers every data source under the configured deadline, persists the session state and prints one line.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := readStructuredInput(cmd.InOrStdin())
			if err != nil {
				return err
			}
			req.Input = input
			if req.ConfigDir == "" {
				req.ConfigDir = os.Getenv("CLAUDE_CONFIG_DIR")
			}
			req.Deadline = app.now().Add(app.cfg.Deadline)

			result, err := app.health.Gather(cmd.Context(), req)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), app.lineRenderer(result.Snapshot))
			return err
		},
	}

	cmd.Flags().StringVar(&req.SessionID, "session", "", "Session ID (default: from stdin)")
	cmd.Flags().StringVar(&req.ConfigDir, "config-dir", "", "Assistant config dir of the session (default: $CLAUDE_CONFIG_DIR)")
	cmd.Flags().StringVar(&req.KeychainKey, "keychain-key", "", "Keychain service holding the session's credentials")
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email of the session, used to pick its quota slot")

	return cmd
}

// readStructuredInput decodes the hook JSON. Empty input yields nil so the
// session can still be named by flag.
func readStructuredInput(r io.Reader) (*domain.StructuredInput, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes))
	if err != nil {
		return nil, fmt.Errorf("read status line input: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var input domain.StructuredInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("decode status line input: %w", err)
	}
	return &input, nil
}
