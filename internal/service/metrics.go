package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kidney-chain-server/internal/cache"
	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/optimizer"
)

// Metrics holds the Prometheus collectors of the chain service. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	graphLoads    *prometheus.CounterVec
	chainBuilds   *prometheus.CounterVec
	buildDuration prometheus.Histogram
	chainLength   prometheus.Histogram
}

// NewMetrics registers the service collectors, and the registry lookup counters when stats is
// not nil, on a fresh registry.
func NewMetrics(stats func() cache.Stats) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		graphLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kidney_chain",
			Name:      "graph_loads_total",
			Help:      "Compatibility graph uploads by outcome.",
		}, []string{"outcome"}),
		chainBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kidney_chain",
			Name:      "chain_builds_total",
			Help:      "Chain builds by outcome.",
		}, []string{"outcome"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kidney_chain",
			Name:      "chain_build_duration_seconds",
			Help:      "Wall time of chain builds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		chainLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kidney_chain",
			Name:      "chain_length_transplants",
			Help:      "Number of transplants in built chains.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
	}

	if stats != nil {
		lookups := []struct {
			tier string
			get  func(cache.Stats) uint64
		}{
			{"memory", func(s cache.Stats) uint64 { return s.MemoryHits }},
			{"store", func(s cache.Stats) uint64 { return s.StoreHits }},
			{"miss", func(s cache.Stats) uint64 { return s.Misses }},
			{"store_error", func(s cache.Stats) uint64 { return s.StoreErrs }},
		}
		for _, l := range lookups {
			get := l.get
			factory.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   "kidney_chain",
				Name:        "graph_lookups_total",
				Help:        "Graph registry lookups by result.",
				ConstLabels: prometheus.Labels{"result": l.tier},
			}, func() float64 { return float64(get(stats())) })
		}
	}

	return m
}

func (m *Metrics) observeGraphLoad(err error) {
	if m == nil {
		return
	}
	m.graphLoads.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeChainBuild(result *optimizer.Result, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.chainBuilds.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	m.buildDuration.Observe(elapsed.Seconds())
	m.chainLength.Observe(float64(len(result.Chain)))
}

func outcome(err error) string {
	var validationErr *domain.ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, domain.ErrGraphNotFound):
		return "not_found"
	default:
		return "error"
	}
}
