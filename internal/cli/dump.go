package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/linkrepo/internal/catalog"
)

func newDumpCmd(a *app) *cobra.Command {
	var opts catalog.DumpOptions
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Report links, rules and query members of every object",
		Long: `Report on every object in scope. Without --links, --rules or --elements
all three are reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.catalog.Dump(opts)
			if err != nil {
				return err
			}
			return printStructured(cmd.OutOrStdout(), d, a.flags.yaml)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.Names, "name", nil, "only these objects")
	f.StringSliceVar(&opts.Tags, "tag", nil, "only links under these tags")
	f.BoolVar(&opts.Links, "links", false, "report links")
	f.BoolVar(&opts.Rules, "rules", false, "report the rules of repos")
	f.BoolVar(&opts.Elements, "elements", false, "report the members of saved queries")
	return cmd
}
