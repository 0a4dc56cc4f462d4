package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "healthline",
		Short:         "healthline: session health for the assistant status line",
		Long:          "healthline gathers billing, context, git and quota state for coding-assistant sessions into one snapshot, renders it as a status line, and keeps background refreshers in check.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		app.closeMetrics()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatuslineCmd(app),
		newStatusCmd(app),
		newQuotaCmd(app),
		newBillingCmd(app),
		newIntentCmd(app),
		newSlotCmd(app),
	)

	return rootCmd
}
