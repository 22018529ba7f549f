package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidney-chain-server/internal/cache"
	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/logging"
)

// ChainService is the application layer shared by the HTTP API, the MCP server and the CLI.
type ChainService struct {
	registry *cache.Registry
	config   domain.OptimizerConfig
	logger   *logrus.Logger
	metrics  *Metrics
}

// RecipientDonors describes a recipient's related donors and the value of continuing a chain
// from it.
type RecipientDonors struct {
	Recipient       string   `json:"recipient"`
	RelatedDonors   []string `json:"related_donors"`
	Depth           int      `json:"depth"`
	ExpectedUtility float64  `json:"expected_utility"`
}

// NewChainService creates a new chain service. metrics may be nil.
func NewChainService(registry *cache.Registry, config domain.OptimizerConfig, logger *logrus.Logger, metrics *Metrics) *ChainService {
	if config.MaxDepth < config.DefaultDepth {
		config.MaxDepth = config.DefaultDepth
	}
	return &ChainService{
		registry: registry,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// LoadGraph parses and registers a JSON compatibility graph and returns its hash.
func (s *ChainService) LoadGraph(ctx context.Context, raw []byte) (string, error) {
	graph, err := domain.ParseGraph(raw)
	if err != nil {
		s.metrics.observeGraphLoad(err)
		return "", err
	}

	opt, err := s.registry.Put(ctx, graph)
	s.metrics.observeGraphLoad(err)
	if err != nil {
		return "", err
	}

	logging.FromContext(ctx, s.logger).WithFields(logrus.Fields{
		"graph":     opt.Hash(),
		"origin":    graph.Origin,
		"patients":  len(graph.Patients),
		"altruists": len(graph.Altruists),
	}).Info("Compatibility graph loaded")
	return opt.Hash(), nil
}

// Summary returns the metadata of a loaded graph.
func (s *ChainService) Summary(ctx context.Context, graphID string) (domain.Summary, error) {
	opt, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return domain.Summary{}, err
	}
	return opt.Summary(), nil
}

// BuildChain builds a transplant chain on a loaded graph and retains the result as the graph's
// latest report.
func (s *ChainService) BuildChain(ctx context.Context, req domain.ChainRequest) (*domain.ChainReport, error) {
	depth, err := s.resolveDepth(req.Depth)
	if err != nil {
		return nil, err
	}

	opt, err := s.registry.Get(ctx, req.GraphID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := opt.BuildChain(ctx, depth, req.Altruist, req.Options)
	s.metrics.observeChainBuild(result, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	report := result.ChainReport
	s.registry.SaveReport(ctx, &report)

	logging.FromContext(ctx, s.logger).WithFields(logrus.Fields{
		"graph":       req.GraphID,
		"altruist":    req.Altruist,
		"depth":       depth,
		"transplants": len(report.Chain),
		"crossed":     len(req.Options.CrossedTests),
		"elapsed_ms":  report.Elapsed.Milliseconds(),
	}).Info("Chain request served")
	return &report, nil
}

// Export returns the graph with the exclusions of its latest chain build applied. Before any
// build the graph is returned unchanged.
func (s *ChainService) Export(ctx context.Context, graphID string) (*domain.CompatibilityGraph, error) {
	opt, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}

	report, err := s.registry.LastReport(ctx, graphID)
	if errors.Is(err, domain.ErrNoChainBuilt) {
		return opt.Graph(), nil
	}
	if err != nil {
		return nil, err
	}
	return opt.UpdatedGraph(report.IgnoredDonors, report.IgnoredRecipients), nil
}

// Report renders the latest chain build of a graph as text.
func (s *ChainService) Report(ctx context.Context, graphID string) (string, error) {
	if _, err := s.registry.Get(ctx, graphID); err != nil {
		return "", err
	}
	report, err := s.registry.LastReport(ctx, graphID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, report, time.Now()); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// LastChain returns the latest chain report of a graph.
func (s *ChainService) LastChain(ctx context.Context, graphID string) (*domain.ChainReport, error) {
	if _, err := s.registry.Get(ctx, graphID); err != nil {
		return nil, err
	}
	return s.registry.LastReport(ctx, graphID)
}

// RelatedDonors returns the related donors of a recipient with the value of continuing a chain
// from it at the given depth (nil selects the default).
func (s *ChainService) RelatedDonors(ctx context.Context, graphID, recipient string, depth *int) (*RecipientDonors, error) {
	d, err := s.resolveDepth(depth)
	if err != nil {
		return nil, err
	}

	opt, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}

	donors, ok := opt.RelatedDonors(recipient)
	if !ok {
		return nil, domain.NewValidationError("recipient", "unknown recipient", recipient)
	}
	utility, err := opt.ExpectedUtility(recipient, d, domain.BuildOptions{})
	if err != nil {
		return nil, err
	}

	return &RecipientDonors{
		Recipient:       recipient,
		RelatedDonors:   donors,
		Depth:           d,
		ExpectedUtility: utility,
	}, nil
}

func (s *ChainService) resolveDepth(depth *int) (int, error) {
	if depth == nil {
		return s.config.DefaultDepth, nil
	}
	if *depth < 0 {
		return 0, domain.NewValidationError("depth", "must not be negative", *depth)
	}
	if s.config.MaxDepth > 0 && *depth > s.config.MaxDepth {
		return 0, domain.NewValidationError("depth", fmt.Sprintf("must not exceed %d", s.config.MaxDepth), *depth)
	}
	return *depth, nil
}
