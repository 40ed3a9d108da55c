package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Rotate returns the command rotating a site variable.
func Rotate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate SITE NAME VALUE",
		Short: "Rotate a site variable and re-apply dependent configuration",
		Long: `Bind a new value for one site variable and re-apply exactly the
configuration steps whose templates reference it. Steps that do not use the
variable keep their cached results.

Examples:
  # New wireless passphrase
  siteflow rotate branch-42 wlan_psk 'correct-horse-battery'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Rotate(cmd.Context(), configPath(cmd), args[0], args[1], args[2])
		},
	}
	return cmd
}
