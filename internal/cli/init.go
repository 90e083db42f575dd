package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/linkrepo/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize linkrepo configuration and storage",
		Long: `Create the configuration directory with a default config.yaml, open the
store, and commit the catalog root for the configured agent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return sysError{err}
			}
			if err := a.open(); err != nil {
				return err
			}
			root, err := a.catalog.Root()
			if err != nil {
				return sysError{err}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "linkrepo initialized")
			fmt.Fprintln(out, "  config:", paths.ConfigFile(configDir))
			fmt.Fprintln(out, "  root:  ", root)
			return nil
		},
	}
}
