package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kidney-chain-server/internal/domain"
)

func newDonorsCmd(opts *globalOptions) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "donors <recipient>",
		Short: "List a recipient's related donors and their expected utility",
		Long: `List a recipient's related donors and the expected utility of continuing a
chain from that recipient. Once the recipient's transplant is confirmed these
donors become new chain starters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := opts.loadOptimizer(cmd)
			if err != nil {
				return err
			}

			recipient := args[0]
			donors, ok := opt.RelatedDonors(recipient)
			if !ok {
				return fmt.Errorf("unknown recipient %s", recipient)
			}
			utility, err := opt.ExpectedUtility(recipient, depth, domain.BuildOptions{})
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"recipient":        recipient,
					"related_donors":   donors,
					"depth":            depth,
					"expected_utility": utility,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recipient %s\nRelated donors: %s\nExpected utility (depth %d): %.4f\n",
				recipient, strings.Join(donors, ", "), depth, utility)
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 3, "lookahead depth")
	return cmd
}
