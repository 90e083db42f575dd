package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newObjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Create and remove named objects",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>...",
		Short: "Create named objects and add them to the scope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if err := a.catalog.CreateObject(name); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>...",
		Short: "Take named objects out of the scope",
		Long:  "Take named objects out of the scope. Their entries and links stay in the store.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if err := a.catalog.RemoveObject(name); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed", name)
			}
			return nil
		},
	})
	return cmd
}
