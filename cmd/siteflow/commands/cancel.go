package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Cancel returns the command cancelling a site's workflow run.
func Cancel() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel SITE",
		Short: "Cancel a site's workflow run",
		Long: `Mark the site's run cancelled. In-flight steps complete and
persist their results; nothing further starts. Already-applied configuration
is not reverted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Cancel(cmd.Context(), configPath(cmd), args[0])
		},
	}
}
