package domain

import (
	"context"
	"time"
)

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetCacheConfig() *CacheConfig
	GetOptimizerConfig() *OptimizerConfig
	Reload() error
	Validate() error
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}

// GraphStore is a shared tier behind the in-process graph registry, keyed by graph hash.
type GraphStore interface {
	// SaveGraph stores the graph under its hash.
	SaveGraph(ctx context.Context, hash string, graph *CompatibilityGraph) error

	// LoadGraph returns the graph stored under hash, or ErrGraphNotFound.
	LoadGraph(ctx context.Context, hash string) (*CompatibilityGraph, error)

	// SaveReport stores the latest chain report of a graph.
	SaveReport(ctx context.Context, report *ChainReport) error

	// LoadReport returns the latest chain report of a graph, or ErrNoChainBuilt.
	LoadReport(ctx context.Context, hash string) (*ChainReport, error)
}

// ChainRequest is a chain build request as received from a client. A nil Depth selects the
// configured default.
type ChainRequest struct {
	GraphID  string       `json:"id"`
	Depth    *int         `json:"depth,omitempty"`
	Altruist string       `json:"altruist"`
	Options  BuildOptions `json:"options"`
}

// ChainReport is the retained outcome of the most recent build on a graph, used by the log and
// export endpoints.
type ChainReport struct {
	GraphID                  string        `json:"graph_id"`
	Altruist                 string        `json:"altruist"`
	Depth                    int           `json:"depth"`
	Chain                    Chain         `json:"chain"`
	Log                      BuildLog      `json:"log"`
	IgnoredDonors            []string      `json:"ignored_donors"`
	IgnoredRecipients        []string      `json:"ignored_recipients"`
	IgnoreFailureProbability bool          `json:"ignore_failure_probability"`
	Elapsed                  time.Duration `json:"elapsed"`
	BuiltAt                  time.Time     `json:"built_at"`
}
