// Package cache keeps uploaded compatibility graphs addressable by content hash.
//
// The registry has two tiers: an in-process LRU of ready optimizers, and an optional shared
// domain.GraphStore (Redis in production) so that several server replicas can serve graphs
// uploaded to any one of them. Concurrent misses for the same hash are collapsed into a single
// store lookup.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/optimizer"
)

// Stats counts registry lookups.
type Stats struct {
	MemoryHits uint64 `json:"memory_hits"`
	StoreHits  uint64 `json:"store_hits"`
	Misses     uint64 `json:"misses"`
	StoreErrs  uint64 `json:"store_errors"`
}

// Registry maps graph hashes to optimizers and keeps the last chain report of each graph.
type Registry struct {
	graphs  *lru.Cache[string, *optimizer.Optimizer]
	reports *lru.Cache[string, *domain.ChainReport]
	store   domain.GraphStore
	loads   singleflight.Group
	logger  *logrus.Logger

	memoryHits atomic.Uint64
	storeHits  atomic.Uint64
	misses     atomic.Uint64
	storeErrs  atomic.Uint64
}

// NewRegistry creates a registry holding at most maxGraphs graphs in memory. store may be nil.
func NewRegistry(maxGraphs int, store domain.GraphStore, logger *logrus.Logger) (*Registry, error) {
	if maxGraphs <= 0 {
		maxGraphs = 128
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	graphs, err := lru.New[string, *optimizer.Optimizer](maxGraphs)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph cache: %w", err)
	}
	reports, err := lru.New[string, *domain.ChainReport](maxGraphs)
	if err != nil {
		return nil, fmt.Errorf("failed to create report cache: %w", err)
	}

	return &Registry{
		graphs:  graphs,
		reports: reports,
		store:   store,
		logger:  logger,
	}, nil
}

// Put registers a graph and returns its optimizer. Registering the same content twice yields
// the same hash.
func (r *Registry) Put(ctx context.Context, graph *domain.CompatibilityGraph) (*optimizer.Optimizer, error) {
	opt, err := optimizer.New(graph, r.logger)
	if err != nil {
		return nil, err
	}
	hash := opt.Hash()

	if existing, ok := r.graphs.Get(hash); ok {
		return existing, nil
	}
	r.graphs.Add(hash, opt)

	if r.store != nil {
		if err := r.store.SaveGraph(ctx, hash, opt.Graph()); err != nil {
			r.storeErrs.Add(1)
			r.logger.WithError(err).WithField("graph", hash).Warn("Failed to save graph to shared store")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"graph":    hash,
		"patients": len(graph.Patients),
	}).Info("Graph registered")
	return opt, nil
}

// Get returns the optimizer of a registered graph, domain.ErrGraphNotFound, or
// domain.ErrStoreUnavailable when the shared store cannot be read.
func (r *Registry) Get(ctx context.Context, hash string) (*optimizer.Optimizer, error) {
	if opt, ok := r.graphs.Get(hash); ok {
		r.memoryHits.Add(1)
		return opt, nil
	}
	if r.store == nil {
		r.misses.Add(1)
		return nil, domain.ErrGraphNotFound
	}

	result, err, _ := r.loads.Do(hash, func() (interface{}, error) {
		// Double-check cache inside singleflight
		if opt, ok := r.graphs.Get(hash); ok {
			return opt, nil
		}

		graph, err := r.store.LoadGraph(ctx, hash)
		if err != nil {
			return nil, err
		}
		opt, err := optimizer.New(graph, r.logger)
		if err != nil {
			return nil, fmt.Errorf("stored graph %s is invalid: %w", hash, err)
		}
		r.graphs.Add(hash, opt)
		return opt, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrGraphNotFound) {
			r.misses.Add(1)
			return nil, err
		}
		r.storeErrs.Add(1)
		r.logger.WithError(err).WithField("graph", hash).Warn("Shared store lookup failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	opt, ok := result.(*optimizer.Optimizer)
	if !ok {
		return nil, fmt.Errorf("unexpected type from graph loader: got %T", result)
	}
	r.storeHits.Add(1)
	return opt, nil
}

// SaveReport retains report as the latest chain built on its graph.
func (r *Registry) SaveReport(ctx context.Context, report *domain.ChainReport) {
	r.reports.Add(report.GraphID, report)
	if r.store != nil {
		if err := r.store.SaveReport(ctx, report); err != nil {
			r.storeErrs.Add(1)
			r.logger.WithError(err).WithField("graph", report.GraphID).Warn("Failed to save chain report to shared store")
		}
	}
}

// LastReport returns the latest chain report of a graph, domain.ErrNoChainBuilt, or
// domain.ErrStoreUnavailable.
func (r *Registry) LastReport(ctx context.Context, hash string) (*domain.ChainReport, error) {
	if report, ok := r.reports.Get(hash); ok {
		return report, nil
	}
	if r.store == nil {
		return nil, domain.ErrNoChainBuilt
	}

	report, err := r.store.LoadReport(ctx, hash)
	if errors.Is(err, domain.ErrNoChainBuilt) {
		return nil, err
	}
	if err != nil {
		r.storeErrs.Add(1)
		r.logger.WithError(err).WithField("graph", hash).Warn("Shared store report lookup failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	r.reports.Add(hash, report)
	return report, nil
}

// Len returns the number of graphs held in memory.
func (r *Registry) Len() int {
	return r.graphs.Len()
}

// Stats returns lookup counters.
func (r *Registry) Stats() Stats {
	return Stats{
		MemoryHits: r.memoryHits.Load(),
		StoreHits:  r.storeHits.Load(),
		Misses:     r.misses.Load(),
		StoreErrs:  r.storeErrs.Load(),
	}
}
