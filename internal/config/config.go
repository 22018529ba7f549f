package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/kidney-chain-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithPaths(".", "./config", "/etc/kidney-chain/")
}

// NewManagerWithPaths creates a configuration manager that looks for config.yaml in the given
// directories only.
func NewManagerWithPaths(paths ...string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	for _, p := range paths {
		m.v.AddConfigPath(p)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")

	// KIDNEY_CHAIN_SERVER_PORT overrides server.port
	m.v.SetEnvPrefix("KIDNEY_CHAIN")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and environment variables still apply
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.v.SetDefault("server.host", "0.0.0.0")
	m.v.SetDefault("server.port", 8080)
	m.v.SetDefault("server.read_timeout", "30s")
	m.v.SetDefault("server.write_timeout", "5m")
	m.v.SetDefault("server.idle_timeout", "120s")
	m.v.SetDefault("server.max_upload_size", 32<<20)
	m.v.SetDefault("server.tls_enabled", false)

	// Graph registry defaults; the Redis tier is off unless a URL is configured
	m.v.SetDefault("cache.max_graphs", 128)
	m.v.SetDefault("cache.redis_url", "")
	m.v.SetDefault("cache.default_ttl", "24h")
	m.v.SetDefault("cache.max_retries", 3)
	m.v.SetDefault("cache.pool_size", 10)
	m.v.SetDefault("cache.pool_timeout", "4s")

	// Optimizer defaults
	m.v.SetDefault("optimizer.default_depth", 3)
	m.v.SetDefault("optimizer.max_depth", 8)

	// Rate limiting defaults
	m.v.SetDefault("rate_limit.enabled", true)
	m.v.SetDefault("rate_limit.requests_per_second", 5)
	m.v.SetDefault("rate_limit.burst", 10)

	// Logging defaults
	m.v.SetDefault("logging.level", "info")
	m.v.SetDefault("logging.format", "json")
	m.v.SetDefault("logging.output", "stdout")

	// MCP defaults
	m.v.SetDefault("mcp.server_name", "kidney-chain-mcp-server")
	m.v.SetDefault("mcp.server_version", "1.0.0")
	m.v.SetDefault("mcp.transport_type", "stdio")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetCacheConfig returns graph registry configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// GetOptimizerConfig returns optimizer defaults
func (m *Manager) GetOptimizerConfig() *domain.OptimizerConfig {
	return &m.config.Optimizer
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive: %d", config.Server.MaxUploadSize)
	}
	if config.Server.TLSEnabled && (config.Server.CertFile == "" || config.Server.KeyFile == "") {
		return fmt.Errorf("TLS is enabled but cert_file or key_file is missing")
	}

	if config.Cache.MaxGraphs <= 0 {
		return fmt.Errorf("cache max_graphs must be positive: %d", config.Cache.MaxGraphs)
	}
	if config.Cache.RedisURL != "" && !strings.HasPrefix(config.Cache.RedisURL, "redis://") && !strings.HasPrefix(config.Cache.RedisURL, "rediss://") {
		return fmt.Errorf("invalid Redis URL: %s", config.Cache.RedisURL)
	}

	if config.Optimizer.DefaultDepth < 0 {
		return fmt.Errorf("optimizer default_depth must not be negative: %d", config.Optimizer.DefaultDepth)
	}
	if config.Optimizer.MaxDepth < config.Optimizer.DefaultDepth {
		return fmt.Errorf("optimizer max_depth (%d) is below default_depth (%d)", config.Optimizer.MaxDepth, config.Optimizer.DefaultDepth)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
