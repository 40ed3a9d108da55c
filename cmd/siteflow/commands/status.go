package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Status returns the command showing a site's workflow state.
func Status() *cobra.Command {
	return &cobra.Command{
		Use:   "status SITE",
		Short: "Show a site's allocation, run state and step records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Status(cmd.Context(), configPath(cmd), args[0])
		},
	}
}
