package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/linkrepo/pkg/links"
)

func newRepoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Create repos and export their rules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a named repo with no rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.catalog.CreateRepo(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created repo", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export <name>",
		Short: "Print the rule set of a repo as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.catalog.ExportRepo(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

func newReciprocalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reciprocal <repo:tag> [[repo:]tag]",
		Short: "Mirror links of one tag with links of another",
		Long: `Add a standing rule: every base -tag-> target put in the first repo puts
target -tag2-> base in the second. With one argument the tag mirrors itself.`,
		Example: `  linkrepo reciprocal married:marriedTo
  linkrepo reciprocal posts:writtenBy authors:wrote`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := parseRepoTag(args[0])
			if err != nil {
				return err
			}
			var foreign *links.TagRef
			if len(args) == 2 {
				ref, err := parseTagRef(args[1])
				if err != nil {
					return err
				}
				foreign = &ref
			}
			if err := a.catalog.Reciprocal(local, foreign); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "added reciprocal rule to", local.Repo)
			return nil
		},
	}
}

func newPredicateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "predicate <repo:trigger> <[repo:]query> <[repo:]dependent>",
		Short: "Derive links from a trigger tag and a query tag",
		Long: `Add a ternary rule: for each A -trigger-> B, every C with B -query-> C
gets A -dependent-> C. Query and dependent default to the trigger's repo.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger, err := parseRepoTag(args[0])
			if err != nil {
				return err
			}
			query, err := parseTagRef(args[1])
			if err != nil {
				return err
			}
			dependent, err := parseTagRef(args[2])
			if err != nil {
				return err
			}
			for _, ref := range []*links.TagRef{&query, &dependent} {
				if ref.Repo == "" {
					ref.Repo = trigger.Repo
				}
			}
			if err := a.catalog.Predicate(trigger, query, dependent); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "added predicate rule to", trigger.Repo)
			return nil
		},
	}
}

func newSingularCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "singular <repo:tag>",
		Short: "Keep at most one outgoing link per base under a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRepoTag(args[0])
			if err != nil {
				return err
			}
			if err := a.catalog.Singular(ref); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "made", ref.Tag, "singular in", ref.Repo)
			return nil
		},
	}
}
