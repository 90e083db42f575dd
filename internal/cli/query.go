package cli

import (
	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run, save and reuse link queries",
	}
	cmd.AddCommand(newQueryCreateCmd(a))
	cmd.AddCommand(newQueryTagsCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "hashes <name>",
		Short: "Print the member hashes of a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashes, err := a.catalog.Hashes(args[0])
			if err != nil {
				return err
			}
			printLines(cmd.OutOrStdout(), hashes)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "data <name>",
		Short: "Print the members of a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.catalog.Data(args[0])
			if err != nil {
				return err
			}
			printLines(cmd.OutOrStdout(), data)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove-all <name>",
		Short: "Remove every link of a saved query from its repo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.catalog.RemoveAllQuery(args[0])
		},
	})
	return cmd
}

func newQueryCreateCmd(a *app) *cobra.Command {
	var repo, name string
	cmd := &cobra.Command{
		Use:   "create <base> [tag]",
		Short: "Print the targets linked from base, optionally saving the query",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := ""
			if len(args) == 2 {
				tag = args[1]
			}
			elements, err := a.catalog.CreateQuery(name, repo, args[0], tag)
			printLines(cmd.OutOrStdout(), elements)
			return err
		},
	}
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "repo to query (default: the rule-free Links repo)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "save the query under this name")
	return cmd
}

func newQueryTagsCmd(a *app) *cobra.Command {
	var into string
	cmd := &cobra.Command{
		Use:   "tags <query> <tag>...",
		Short: "Narrow a saved query to some tags",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			elements, err := a.catalog.Tags(args[0], args[1:], into)
			printLines(cmd.OutOrStdout(), elements)
			return err
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "save the narrowed query under this name")
	return cmd
}
