// Package main provides the MCP entry point of the kidney chain planner.
// It needs no config file; settings come from KIDNEY_* environment variables.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kidney-chain-server/internal/cache"
	"github.com/kidney-chain-server/internal/config"
	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/logging"
	"github.com/kidney-chain-server/internal/mcp"
	"github.com/kidney-chain-server/internal/service"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	// stdout carries the protocol
	logger, err := logging.New(domain.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stderr",
	})
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	var store domain.GraphStore
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(domain.CacheConfig{
			RedisURL:   cfg.RedisURL,
			DefaultTTL: cfg.CacheTTL,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisStore.Close()
		store = redisStore
	}

	registry, err := cache.NewRegistry(cfg.CacheMaxGraphs, store, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create graph registry")
	}
	chains := service.NewChainService(registry, domain.OptimizerConfig{
		DefaultDepth: cfg.DefaultDepth,
		MaxDepth:     cfg.MaxDepth,
	}, logger, nil)

	server, err := mcp.NewServer(cfg, chains, mcp.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithField("data_dir", cfg.DataDir).Info("Starting kidney chain MCP server")

	// Start MCP server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		os.Exit(1)
	}

	logger.Info("Kidney chain MCP server stopped")
}
