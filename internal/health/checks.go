package health

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/kidney-chain-server/internal/cache"
)

// RegistryCheck reports the in-memory graph registry.
type RegistryCheck struct {
	Registry *cache.Registry
}

func (RegistryCheck) Name() string { return "registry" }

func (r RegistryCheck) Check(ctx context.Context) ComponentHealth {
	if r.Registry == nil {
		return ComponentHealth{Status: StateUnhealthy, Message: "registry not configured"}
	}
	stats := r.Registry.Stats()
	return ComponentHealth{
		Status: StateHealthy,
		Metadata: map[string]interface{}{
			"graphs":       r.Registry.Len(),
			"memory_hits":  stats.MemoryHits,
			"store_hits":   stats.StoreHits,
			"misses":       stats.Misses,
			"store_errors": stats.StoreErrs,
		},
	}
}

// Pinger is a shared store that answers a liveness ping.
type Pinger interface {
	Ping(ctx context.Context) error
	BreakerState() gobreaker.State
}

// StoreCheck pings the shared graph store. Graphs stay servable from memory while the store
// is down, so a failure is reported as a warning.
type StoreCheck struct {
	Store Pinger
}

func (StoreCheck) Name() string { return "graph_store" }

func (s StoreCheck) Check(ctx context.Context) ComponentHealth {
	state := s.Store.BreakerState()
	metadata := map[string]interface{}{"circuit_breaker": state.String()}
	if err := s.Store.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:   StateWarning,
			Message:  fmt.Sprintf("store unreachable: %v", err),
			Metadata: metadata,
		}
	}
	if state != gobreaker.StateClosed {
		return ComponentHealth{Status: StateWarning, Message: "circuit breaker " + state.String(), Metadata: metadata}
	}
	return ComponentHealth{Status: StateHealthy, Metadata: metadata}
}

var _ Pinger = (*cache.RedisStore)(nil)
