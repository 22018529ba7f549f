package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSummaryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the origin, description and altruists of a graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := opts.loadOptimizer(cmd)
			if err != nil {
				return err
			}

			summary := opt.Summary()
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":          opt.Hash(),
					"origin":      summary.Origin,
					"description": summary.Description,
					"altruists":   summary.Altruists,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Origin:      %s\n", summary.Origin)
			fmt.Fprintf(out, "Description: %s\n", summary.Description)
			fmt.Fprintf(out, "Altruists:   %s\n", strings.Join(summary.Altruists, ", "))
			return nil
		},
	}
}

func newHashCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Print the content hash identifying a graph on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := opts.loadOptimizer(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), opt.Hash())
			return nil
		},
	}
}
