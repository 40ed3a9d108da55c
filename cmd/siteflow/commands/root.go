// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the siteflow CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "siteflow",
		Short: "Provision multi-site networks on a cloud-managed platform",
	}

	cmd.PersistentFlags().StringP("config", "c", "siteflow.yaml", "Path to configuration file")

	// Day-0 and Day-1 provisioning
	cmd.AddCommand(Reachability())
	cmd.AddCommand(Site())
	cmd.AddCommand(Claim())
	cmd.AddCommand(Day1())

	// Validation and lifecycle
	cmd.AddCommand(Assure())
	cmd.AddCommand(Canary())
	cmd.AddCommand(Rotate())

	// Operations
	cmd.AddCommand(Status())
	cmd.AddCommand(Cancel())
	cmd.AddCommand(Version())

	return cmd
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
