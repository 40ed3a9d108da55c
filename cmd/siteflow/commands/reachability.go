package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Reachability returns the command probing the platform and persisting the
// resolved org identity.
func Reachability() *cobra.Command {
	return &cobra.Command{
		Use:   "reachability",
		Short: "Verify the platform is reachable and resolve the org identity",
		Long: `Probe the platform API with the configured token, resolve the
organization the token is scoped to, and persist the org context for
subsequent operations.

Environment variables:

  SITEFLOW_API_TOKEN: platform API token (name configurable via token_env)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Reachability(cmd.Context(), configPath(cmd))
		},
	}
}
