package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/logging"
	"github.com/kidney-chain-server/internal/service"
)

// LoadGraphParams defines parameters for the load_graph tool
type LoadGraphParams struct {
	Path  string `json:"path,omitempty" jsonschema:"path of a JSON compatibility graph file"`
	Graph string `json:"graph,omitempty" jsonschema:"inline JSON compatibility graph, used when path is empty"`
}

// GraphParams identifies a loaded graph
type GraphParams struct {
	ID string `json:"id" jsonschema:"graph identifier returned by load_graph"`
}

// GraphSummaryResult is the result of load_graph and graph_summary
type GraphSummaryResult struct {
	ID          string   `json:"id"`
	Origin      string   `json:"origin"`
	Description string   `json:"description"`
	Altruists   []string `json:"altruists"`
}

// BuildChainParams defines parameters for the build_chain tool
type BuildChainParams struct {
	ID                       string   `json:"id" jsonschema:"graph identifier returned by load_graph"`
	Altruist                 string   `json:"altruist" jsonschema:"altruistic donor starting the chain"`
	Depth                    *int     `json:"depth,omitempty" jsonschema:"lookahead depth, server default when omitted"`
	IgnoredDonors            []string `json:"ignored_donors,omitempty" jsonschema:"donors excluded from the chain"`
	IgnoredRecipients        []string `json:"ignored_recipients,omitempty" jsonschema:"recipients excluded from the chain"`
	CrossedTests             []string `json:"crossed_tests,omitempty" jsonschema:"positive crossed tests as recipient-donor pairs"`
	IgnoreFailureProbability bool     `json:"ignore_failure_probability,omitempty" jsonschema:"treat every transplant as certain"`
	ChainLength              int      `json:"chain_length,omitempty" jsonschema:"maximum number of transplants, 0 for unbounded"`
	SaveReport               bool     `json:"save_report,omitempty" jsonschema:"also write the text report into the report directory"`
}

// BuildChainResult is the result of the build_chain tool
type BuildChainResult struct {
	ID                string                  `json:"id"`
	Altruist          string                  `json:"altruist"`
	Depth             int                     `json:"depth"`
	Chain             domain.Chain            `json:"chain"`
	IgnoredDonors     []string                `json:"ignored_donors"`
	IgnoredRecipients []string                `json:"ignored_recipients"`
	CrossedTests      []domain.CrossedTestHit `json:"crossed_tests"`
	Errors            []string                `json:"errors,omitempty"`
	ElapsedMS         int64                   `json:"elapsed_ms"`
	ReportPath        string                  `json:"report_path,omitempty"`
}

// RelatedDonorsParams defines parameters for the related_donors tool
type RelatedDonorsParams struct {
	ID        string `json:"id" jsonschema:"graph identifier returned by load_graph"`
	Recipient string `json:"recipient" jsonschema:"recipient whose related donors are listed"`
	Depth     *int   `json:"depth,omitempty" jsonschema:"lookahead depth, server default when omitted"`
}

// ExportGraphParams defines parameters for the export_graph tool
type ExportGraphParams struct {
	ID       string `json:"id" jsonschema:"graph identifier returned by load_graph"`
	Filename string `json:"filename,omitempty" jsonschema:"file name inside the export directory"`
}

// ExportGraphResult is the result of the export_graph tool
type ExportGraphResult struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Patients  int    `json:"patients"`
	Altruists int    `json:"altruists"`
}

func (s *Server) handleLoadGraph(ctx context.Context, req *mcp.CallToolRequest, params LoadGraphParams) (*mcp.CallToolResult, any, error) {
	if params.Path == "" && strings.TrimSpace(params.Graph) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("path or graph is required")), nil, nil
	}

	ctx, op := logging.StartOperation(ctx, s.logger, "tool", "load_graph", logrus.Fields{"path": params.Path})

	raw := []byte(params.Graph)
	if params.Path != "" {
		data, err := os.ReadFile(params.Path)
		if err != nil {
			op.End(err)
			return s.createErrorResult("Failed to read graph file", err), nil, nil
		}
		raw = data
	}

	id, err := s.chains.LoadGraph(ctx, raw)
	if err != nil {
		op.End(err)
		return s.createErrorResult("Failed to load graph", err), nil, nil
	}
	summary, err := s.chains.Summary(ctx, id)
	op.End(err)
	if err != nil {
		return s.createErrorResult("Failed to load graph", err), nil, nil
	}

	result := summaryResult(id, summary)
	return textResult(fmt.Sprintf("Loaded graph %s (%s) with %d altruistic donors: %s",
		id, summary.Origin, len(summary.Altruists), strings.Join(summary.Altruists, ", "))), result, nil
}

func (s *Server) handleGraphSummary(ctx context.Context, req *mcp.CallToolRequest, params GraphParams) (*mcp.CallToolResult, any, error) {
	if params.ID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("id is required")), nil, nil
	}

	summary, err := s.chains.Summary(ctx, params.ID)
	if err != nil {
		return s.createErrorResult("Graph summary failed", err), nil, nil
	}

	result := summaryResult(params.ID, summary)
	return textResult(fmt.Sprintf("Graph %s: origin %s, altruistic donors %s",
		params.ID, summary.Origin, strings.Join(summary.Altruists, ", "))), result, nil
}

func (s *Server) handleBuildChain(ctx context.Context, req *mcp.CallToolRequest, params BuildChainParams) (*mcp.CallToolResult, any, error) {
	if params.ID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("id is required")), nil, nil
	}

	ctx, op := logging.StartOperation(ctx, s.logger, "tool", "build_chain", logrus.Fields{
		"graph":    params.ID,
		"altruist": params.Altruist,
	})

	report, err := s.chains.BuildChain(ctx, domain.ChainRequest{
		GraphID:  params.ID,
		Depth:    params.Depth,
		Altruist: params.Altruist,
		Options: domain.BuildOptions{
			IgnoredDonors:            params.IgnoredDonors,
			IgnoredRecipients:        params.IgnoredRecipients,
			CrossedTests:             params.CrossedTests,
			IgnoreFailureProbability: params.IgnoreFailureProbability,
			ChainLength:              params.ChainLength,
		},
	})
	if err != nil {
		op.End(err)
		return s.createErrorResult("Chain build failed", err), nil, nil
	}

	result := BuildChainResult{
		ID:                params.ID,
		Altruist:          report.Altruist,
		Depth:             report.Depth,
		Chain:             report.Chain,
		IgnoredDonors:     report.IgnoredDonors,
		IgnoredRecipients: report.IgnoredRecipients,
		CrossedTests:      report.Log.CrossedTests,
		Errors:            report.Log.Errors,
		ElapsedMS:         report.Elapsed.Milliseconds(),
	}

	if params.SaveReport {
		path, err := s.writeReport(report)
		if err != nil {
			op.End(err)
			return s.createErrorResult("Failed to write report", err), nil, nil
		}
		result.ReportPath = path
	}
	op.End(nil)

	return textResult(describeChain(report)), result, nil
}

func (s *Server) handleRelatedDonors(ctx context.Context, req *mcp.CallToolRequest, params RelatedDonorsParams) (*mcp.CallToolResult, any, error) {
	if params.ID == "" || params.Recipient == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("id and recipient are required")), nil, nil
	}

	info, err := s.chains.RelatedDonors(ctx, params.ID, params.Recipient, params.Depth)
	if err != nil {
		return s.createErrorResult("Related donor lookup failed", err), nil, nil
	}

	return textResult(fmt.Sprintf("Recipient %s has related donors %s; expected utility at depth %d: %.4f",
		info.Recipient, strings.Join(info.RelatedDonors, ", "), info.Depth, info.ExpectedUtility)), info, nil
}

func (s *Server) handleExportGraph(ctx context.Context, req *mcp.CallToolRequest, params ExportGraphParams) (*mcp.CallToolResult, any, error) {
	if params.ID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("id is required")), nil, nil
	}

	name := params.Filename
	if name == "" {
		name = shortID(params.ID) + ".json"
	}
	if filepath.Base(name) != name {
		return s.createErrorResult("Invalid parameter", fmt.Errorf("filename must not contain a path: %q", name)), nil, nil
	}

	ctx, op := logging.StartOperation(ctx, s.logger, "tool", "export_graph", logrus.Fields{"graph": params.ID, "filename": name})

	graph, err := s.chains.Export(ctx, params.ID)
	if err != nil {
		op.End(err)
		return s.createErrorResult("Export failed", err), nil, nil
	}

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		op.End(err)
		return s.createErrorResult("Export failed", err), nil, nil
	}
	path := filepath.Join(s.config.ExportDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		op.End(err)
		return s.createErrorResult("Export failed", err), nil, nil
	}
	op.End(nil)

	result := ExportGraphResult{
		ID:        params.ID,
		Path:      path,
		Patients:  len(graph.Patients),
		Altruists: len(graph.Altruists),
	}
	return textResult(fmt.Sprintf("Exported graph %s with %d recipients to %s", params.ID, result.Patients, path)), result, nil
}

func (s *Server) writeReport(report *domain.ChainReport) (string, error) {
	name := fmt.Sprintf("%s-%s.log", shortID(report.GraphID), report.BuiltAt.Format("20060102T150405"))
	path := filepath.Join(s.config.ReportDir(), name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := service.WriteReport(f, report, time.Now()); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func describeChain(report *domain.ChainReport) string {
	if len(report.Chain) == 0 {
		return fmt.Sprintf("No transplant chain could be built from altruist %s", report.Altruist)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Chain of %d transplants from altruist %s (depth %d):", len(report.Chain), report.Altruist, report.Depth)
	for i, t := range report.Chain {
		fmt.Fprintf(&b, "\n%d. %s -> %s (p=%g, value=%.4f)", i+1, t.Donor, t.Recipient, t.SuccessProbability, t.Value)
	}
	return b.String()
}

func summaryResult(id string, summary domain.Summary) GraphSummaryResult {
	return GraphSummaryResult{
		ID:          id,
		Origin:      summary.Origin,
		Description: summary.Description,
		Altruists:   summary.Altruists,
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
