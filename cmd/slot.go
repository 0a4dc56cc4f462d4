package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/healthline/internal/domain"
)

func newSlotCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage credential slots in the session registry",
	}

	cmd.AddCommand(
		newSlotListCmd(app),
		newSlotAddCmd(app),
		newSlotActivateCmd(app),
		newSlotDeactivateCmd(app),
		newSlotUseCmd(app),
	)

	return cmd
}

func newSlotListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := app.slots.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reg)
			}

			if len(reg.Slots) == 0 {
				_, err := fmt.Fprintln(out, "no slots registered")
				return err
			}
			for _, slot := range reg.Slots {
				if _, err := fmt.Fprintln(out, slotLine(reg, slot)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func slotLine(reg domain.SessionRegistry, slot domain.RegistrySlot) string {
	parts := []string{slot.ID, string(reg.StatusOf(slot.ID))}
	if slot.Email != "" {
		parts = append(parts, slot.Email)
	}
	if slot.ConfigDir != "" {
		parts = append(parts, "dir="+slot.ConfigDir)
	}
	if slot.KeychainKey != "" {
		parts = append(parts, "keychain="+slot.KeychainKey)
	}
	if slot.DeactivationReason != "" {
		parts = append(parts, fmt.Sprintf("(%s)", slot.DeactivationReason))
	}
	line := strings.Join(parts, "  ")
	if reg.Active == slot.ID {
		line = "* " + line
	} else {
		line = "  " + line
	}
	return line
}

func newSlotAddCmd(app *app) *cobra.Command {
	var slot domain.RegistrySlot

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register or update a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot.ID = strings.TrimSpace(args[0])
			slot.Status = domain.SlotActive
			if err := slot.Validate(); err != nil {
				return err
			}
			if slot.ConfigDir == "" && slot.KeychainKey == "" {
				return fmt.Errorf("slot %s: --config-dir or --keychain-key is required", slot.ID)
			}

			err := app.slots.Update(cmd.Context(), func(reg *domain.SessionRegistry) error {
				if existing, ok := reg.Slot(slot.ID); ok {
					slot.Status = existing.Status
					slot.DeactivatedAt = existing.DeactivatedAt
					slot.DeactivationReason = existing.DeactivationReason
					slot.ReactivatedAt = existing.ReactivatedAt
				}
				reg.Upsert(slot)
				return nil
			})
			if err != nil {
				return fmt.Errorf("save slot: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved slot %s\n", slot.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&slot.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&slot.ConfigDir, "config-dir", "", "Assistant config dir holding the slot's credentials")
	cmd.Flags().StringVar(&slot.KeychainKey, "keychain-key", "", "Keychain service holding the slot's credentials")

	return cmd
}

func newSlotActivateCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Put a slot back into rotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.slots.Update(cmd.Context(), func(reg *domain.SessionRegistry) error {
				return reg.Activate(args[0], app.now())
			})
			if err != nil {
				return fmt.Errorf("activate slot %s: %w", args[0], err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "activated slot %s\n", args[0])
			return err
		},
	}
}

func newSlotDeactivateCmd(app *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Take a slot out of rotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.slots.Update(cmd.Context(), func(reg *domain.SessionRegistry) error {
				return reg.Deactivate(args[0], reason, app.now())
			})
			if err != nil {
				return fmt.Errorf("deactivate slot %s: %w", args[0], err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deactivated slot %s\n", args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the slot leaves rotation")

	return cmd
}

func newSlotUseCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Point the registry's active slot at id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.slots.Update(cmd.Context(), func(reg *domain.SessionRegistry) error {
				if _, ok := reg.Slot(args[0]); !ok {
					return domain.ErrSlotNotFound
				}
				reg.Active = args[0]
				return nil
			})
			if err != nil {
				return fmt.Errorf("use slot %s: %w", args[0], err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "active slot is now %s\n", args[0])
			return err
		},
	}
}
