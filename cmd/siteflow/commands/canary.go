package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Canary returns the command staging a device change through the canary
// state machine.
func Canary() *cobra.Command {
	var opts handlers.CanaryOptions

	cmd := &cobra.Command{
		Use:   "canary SITE",
		Short: "Stage a device change behind SLE measurement",
		Long: `Apply a change to one canary device, watch its SLE scores across
the measurement window, and either promote the change to the site's
remaining devices or restore the canary from its snapshot.

One below-threshold sample rolls back immediately.

Examples:
  siteflow canary branch-42 --device aa:bb:cc:00:11:22 --change '{"firmware":"23.4R1"}'
  siteflow canary branch-42 --status
  siteflow canary branch-42 --abort`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Canary(cmd.Context(), configPath(cmd), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Device, "device", "", "Canary device MAC")
	cmd.Flags().StringVar(&opts.Change, "change", "", "Change document (JSON)")
	cmd.Flags().BoolVar(&opts.Status, "status", false, "Show the most recent rollout instead of starting one")
	cmd.Flags().BoolVar(&opts.Abort, "abort", false, "Abort a stuck rollout, restoring the canary device")

	return cmd
}
