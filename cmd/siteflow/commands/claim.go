package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Claim returns the command claiming and assigning devices to a site.
func Claim() *cobra.Command {
	var macs []string

	cmd := &cobra.Command{
		Use:   "claim SITE",
		Short: "Claim devices into the org and assign them to a site",
		Long: `Claim the given device MACs into the org inventory and bind them
to the site, completing Day-0. Claim and assignment are upserts; re-running
with the same devices is a no-op.

Examples:
  siteflow claim branch-42 --mac aa:bb:cc:00:11:22 --mac aa:bb:cc:00:11:23`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Claim(cmd.Context(), configPath(cmd), args[0], macs)
		},
	}

	cmd.Flags().StringArrayVar(&macs, "mac", nil, "Device MAC address (repeatable)")

	return cmd
}
