package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Assure returns the command validating a deployed site against SLE scores.
func Assure() *cobra.Command {
	return &cobra.Command{
		Use:   "assure SITE",
		Short: "Validate a deployed site against its SLE scores",
		Long: `Sample the site's service-level-expectation scores and record the
verdict on its workflow run. A score below the threshold marks the site
assurance-failed; nothing is rolled back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Assure(cmd.Context(), configPath(cmd), args[0])
		},
	}
}
