// Package mcp exposes the chain service as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/kidney-chain-server/internal/config"
	"github.com/kidney-chain-server/internal/service"
)

// Server is the MCP server of the chain planner.
type Server struct {
	config    *config.LiteConfig
	chains    *service.ChainService
	mcpServer *mcp.Server
	logger    *logrus.Logger
	info      *mcp.Implementation
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithImplementation overrides the name and version reported to clients.
func WithImplementation(name, version string) ServerOption {
	return func(s *Server) error {
		s.info = &mcp.Implementation{Name: name, Version: version}
		return nil
	}
}

// NewServer creates a new MCP server over the given chain service.
func NewServer(cfg *config.LiteConfig, chains *service.ChainService, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config: cfg,
		chains: chains,
		logger: logrus.New(),
		info: &mcp.Implementation{
			Name:    "kidney-chain-mcp-server",
			Version: "v1.0.0",
		},
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Ensure data directory exists
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.mcpServer = mcp.NewServer(server.info, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"name":       server.info.Name,
		"version":    server.info.Version,
		"data_dir":   cfg.DataDir,
		"tool_count": len(toolNames),
	}).Info("MCP server initialized")
	return server, nil
}

// Start serves MCP requests until the client disconnects or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	var transport mcp.Transport
	switch s.config.Transport {
	case "", "stdio":
		transport = &mcp.StdioTransport{}
	default:
		return fmt.Errorf("unsupported transport %q", s.config.Transport)
	}

	s.logger.WithField("transport_type", "stdio").Info("Starting MCP server")
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// toolNames lists the registered tools in registration order.
var toolNames = []string{"load_graph", "graph_summary", "build_chain", "related_donors", "export_graph"}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "load_graph",
		Description: "Load a JSON compatibility graph from a file path or inline JSON and return its identifier (content hash) and summary.",
	}, s.handleLoadGraph)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "graph_summary",
		Description: "Return the origin, description and altruistic donors of a loaded graph.",
	}, s.handleGraphSummary)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "build_chain",
		Description: "Build a kidney paired donation chain from an altruistic donor using expected-utility lookahead. Supports excluded donors and recipients, positive crossed tests (\"recipient-donor\") and a chain length bound.",
	}, s.handleBuildChain)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "related_donors",
		Description: "List a recipient's related donors and the expected utility of continuing a chain from that recipient.",
	}, s.handleRelatedDonors)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_graph",
		Description: "Write the graph, minus the exclusions of its latest chain build, as JSON into the export directory.",
	}, s.handleExportGraph)

	for _, name := range toolNames {
		s.logger.WithField("tool_name", name).Debug("Registered MCP tool")
	}
}
