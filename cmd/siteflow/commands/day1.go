package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Day1 returns the command applying Day-1 configuration domains.
func Day1() *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "day1 SITE",
		Short: "Apply Day-1 configuration (wan, wired, wireless)",
		Long: `Drive the site's Day-1 configuration workflow. The three domains
are independent subtrees: a failure in one blocks only its own dependents,
and re-running retries exactly the failed steps.

Examples:
  # Everything
  siteflow day1 branch-42

  # One domain
  siteflow day1 branch-42 --domain wireless`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Day1(cmd.Context(), configPath(cmd), args[0], domain)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "all", "Domain to apply: wan, wired, wireless or all")

	return cmd
}
