package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/optimizer"
	"github.com/kidney-chain-server/internal/service"
)

type buildOptions struct {
	altruist   string
	depth      int
	options    domain.BuildOptions
	reportPath string
	exportPath string
}

func newBuildCmd(opts *globalOptions) *cobra.Command {
	b := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a transplant chain from an altruistic donor",
		Long: `Build a transplant chain from an altruistic donor.

Each step picks the compatible recipient with the highest score plus expected
utility of continuing the chain, looking --depth steps ahead.

Examples:
  chainctl -f graph.json build --altruist 1000
  chainctl -f graph.json build --altruist 1000 --ignore-donor 3008 --ignore-recipient 2003
  chainctl -f graph.json build --altruist 1000 --crossed-test 2004-3000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := opts.loadOptimizer(cmd)
			if err != nil {
				return err
			}

			result, err := opt.BuildChain(cmd.Context(), b.depth, b.altruist, b.options)
			if err != nil {
				return fmt.Errorf("chain build failed: %w", err)
			}

			if b.reportPath != "" {
				var buf bytes.Buffer
				if err := service.WriteReport(&buf, &result.ChainReport, time.Now()); err != nil {
					return err
				}
				if err := writeOutput(cmd.OutOrStdout(), b.reportPath, buf.Bytes()); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
			}
			if b.exportPath != "" {
				data, err := json.MarshalIndent(opt.Export(result), "", "  ")
				if err != nil {
					return err
				}
				if err := writeOutput(cmd.OutOrStdout(), b.exportPath, data); err != nil {
					return fmt.Errorf("failed to write graph: %w", err)
				}
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), result.ChainReport)
			}
			return printChain(cmd, result)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&b.altruist, "altruist", "a", "", "altruistic donor starting the chain (required)")
	flags.IntVarP(&b.depth, "depth", "d", 3, "lookahead depth")
	flags.StringSliceVar(&b.options.IgnoredDonors, "ignore-donor", nil, "donor to exclude (repeatable)")
	flags.StringSliceVar(&b.options.IgnoredRecipients, "ignore-recipient", nil, "recipient to exclude (repeatable)")
	flags.StringSliceVar(&b.options.CrossedTests, "crossed-test", nil, "positive crossed test as recipient-donor (repeatable)")
	flags.BoolVar(&b.options.IgnoreFailureProbability, "ignore-failure-probability", false, "treat every transplant as certain")
	flags.IntVar(&b.options.ChainLength, "chain-length", 0, "maximum number of transplants, 0 for unbounded")
	flags.StringVar(&b.reportPath, "report", "", "write the text report to this file")
	flags.StringVar(&b.exportPath, "export", "", "write the graph without the excluded donors and recipients to this file")
	_ = cmd.MarkFlagRequired("altruist")

	return cmd
}

func printChain(cmd *cobra.Command, result *optimizer.Result) error {
	out := cmd.OutOrStdout()
	if len(result.Chain) == 0 {
		fmt.Fprintf(out, "No chain could be built from altruist %s\n", result.Altruist)
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tDONOR\tRECIPIENT\tPROBABILITY\tVALUE")
		for i, t := range result.Chain {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%.4f\n", i+1, t.Donor, t.Recipient, t.SuccessProbability, t.Value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(result.Log.CrossedTests) > 0 {
		fmt.Fprintln(out, "\nPositive crossed tests:")
		for _, hit := range result.Log.CrossedTests {
			fmt.Fprintf(out, "  %s -> %s\n", hit.Donor, hit.Receiver)
		}
	}
	for _, msg := range result.Log.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
	}
	fmt.Fprintf(out, "\nBuilt in %s\n", result.Elapsed.Round(time.Microsecond))
	return nil
}
