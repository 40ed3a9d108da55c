package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/siteflow/cmd/siteflow/handlers"
)

// Site returns the command planning and creating a site.
func Site() *cobra.Command {
	var opts handlers.SiteOptions

	cmd := &cobra.Command{
		Use:   "site NAME",
		Short: "Plan subnets and create a site",
		Long: `Deterministically plan the site's role subnets inside its zone,
check them against every persisted allocation, create the site on the
platform and bind the derived site variables.

Re-invoking with the same arguments replays from persisted state without
touching the platform.

Examples:
  # First site in zone 0
  siteflow site "Branch 42" --zone 0 --ordinal 0 --timezone Europe/Oslo

  # Site with devices to claim later
  siteflow site "Branch 43" --zone 0 --ordinal 1 --device aa:bb:cc:00:11:22`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return handlers.Site(cmd.Context(), configPath(cmd), opts)
		},
	}

	cmd.Flags().IntVar(&opts.Zone, "zone", 0, "Zone index the site belongs to")
	cmd.Flags().IntVar(&opts.Ordinal, "ordinal", 0, "Site ordinal within the zone")
	cmd.Flags().StringVar(&opts.Address, "address", "", "Street address")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA timezone")
	cmd.Flags().StringVar(&opts.CountryCode, "country", "", "ISO country code")
	cmd.Flags().StringArrayVar(&opts.Devices, "device", nil, "Device MAC to claim (repeatable)")
	cmd.Flags().StringToStringVar(&opts.Variables, "var", nil, "Extra site variable (name=value, repeatable)")

	return cmd
}
