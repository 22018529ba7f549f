// Package commands implements the chainctl command tree.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/optimizer"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	graphFile  string
	jsonOutput bool
	verbose    bool
}

// NewRootCmd builds the chainctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "chainctl",
		Short: "Offline kidney paired donation chain planner",
		Long: `Offline kidney paired donation chain planner.

Every command reads a compatibility graph from a JSON file, the same format the
server accepts on upload.

Examples:
  chainctl -f graph.json summary
  chainctl -f graph.json build --altruist 1000 --depth 3
  chainctl -f graph.json build --altruist 1000 --crossed-test 2004-3000 --report chain.log
  chainctl -f graph.json export --ignore-recipient 2003 -o updated.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.graphFile, "file", "f", "", "compatibility graph JSON file (required)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log each chain step to stderr")

	root.AddCommand(
		newSummaryCmd(opts),
		newHashCmd(opts),
		newBuildCmd(opts),
		newDonorsCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) logger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if o.verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// loadOptimizer reads and validates the graph named by --file.
func (o *globalOptions) loadOptimizer(cmd *cobra.Command) (*optimizer.Optimizer, error) {
	if o.graphFile == "" {
		return nil, fmt.Errorf("graph file is required, use -f flag")
	}

	data, err := os.ReadFile(o.graphFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", o.graphFile, err)
	}
	graph, err := domain.ParseGraph(data)
	if err != nil {
		return nil, fmt.Errorf("invalid graph %s: %w", o.graphFile, err)
	}
	return optimizer.New(graph, o.logger(cmd))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput writes data to path, or to w when path is "-" or empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
