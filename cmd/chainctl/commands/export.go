package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		ignoredDonors     []string
		ignoredRecipients []string
		output            string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a graph with donors and recipients removed",
		Long: `Write a graph with donors and recipients removed, together with every
compatibility that references them. A removed recipient takes its related
donors along.

Examples:
  chainctl -f graph.json export --ignore-recipient 2000,2004 -o remaining.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := opts.loadOptimizer(cmd)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(opt.UpdatedGraph(ignoredDonors, ignoredRecipients), "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, append(data, '\n'))
		},
	}

	cmd.Flags().StringSliceVar(&ignoredDonors, "ignore-donor", nil, "donor to remove (repeatable)")
	cmd.Flags().StringSliceVar(&ignoredRecipients, "ignore-recipient", nil, "recipient to remove (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}
