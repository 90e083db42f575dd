package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLinkCmd(a *app) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "link <base> <tag> <target>",
		Short: "Put a link, applying the repo's rules",
		Example: `  linkrepo link alice knows bob
  linkrepo link --repo married alice marriedTo bob`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := a.catalog.Link(repo, args[0], args[2], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "repo to link in (default: the rule-free Links repo)")
	return cmd
}

func newUnlinkCmd(a *app) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "unlink <base> <tag> <target>",
		Short: "Remove a link, applying the repo's rules",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := a.catalog.RemoveLink(repo, args[0], args[2], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "repo to unlink in (default: the rule-free Links repo)")
	return cmd
}
