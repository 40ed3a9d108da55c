package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	versionString = "dev"
	commitString  = "none"
	dateString    = "unknown"
)

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, date string) {
	versionString = version
	commitString = commit
	dateString = date
}

// Version returns the command printing build information.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "siteflow %s (commit %s, built %s)\n",
				versionString, commitString, dateString)
		},
	}
}
