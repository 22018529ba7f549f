// Package config provides configuration management for the chain planning servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no config file or Redis and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for exported graphs and chain reports

	// Graph registry settings
	CacheMaxGraphs int           // Maximum graphs kept in memory
	CacheTTL       time.Duration // TTL of graphs in the Redis tier
	RedisURL       string        // Optional: shared Redis tier

	// Optimizer settings
	DefaultDepth int // Lookahead depth when a request omits it
	MaxDepth     int // Upper bound accepted from requests

	// Transport settings
	Transport string // Transport type: stdio

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".kidney-chain")

	return &LiteConfig{
		DataDir:        dataDir,
		CacheMaxGraphs: 32,
		CacheTTL:       24 * time.Hour,
		DefaultDepth:   3,
		MaxDepth:       8,
		Transport:      "stdio",
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("KIDNEY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Graph registry
	if v := os.Getenv("KIDNEY_CACHE_MAX_GRAPHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxGraphs = n
		}
	}
	if v := os.Getenv("KIDNEY_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	cfg.RedisURL = os.Getenv("KIDNEY_REDIS_URL")

	// Optimizer
	if v := os.Getenv("KIDNEY_DEFAULT_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DefaultDepth = n
		}
	}
	if v := os.Getenv("KIDNEY_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxDepth = n
		}
	}
	if cfg.MaxDepth < cfg.DefaultDepth {
		cfg.MaxDepth = cfg.DefaultDepth
	}

	// Transport
	if v := os.Getenv("KIDNEY_TRANSPORT"); v != "" {
		cfg.Transport = v
	}

	// Logging
	if v := os.Getenv("KIDNEY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KIDNEY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ExportDir returns the directory for exported graphs.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// ReportDir returns the directory for chain build reports.
func (c *LiteConfig) ReportDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// EnsureDataDir creates the data directories if they don't exist.
func (c *LiteConfig) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.ExportDir(), c.ReportDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
