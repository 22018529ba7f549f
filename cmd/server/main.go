package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidney-chain-server/internal/api"
	"github.com/kidney-chain-server/internal/cache"
	"github.com/kidney-chain-server/internal/config"
	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/health"
	"github.com/kidney-chain-server/internal/logging"
	"github.com/kidney-chain-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Optional shared tier
	var store domain.GraphStore
	var checks []health.Check
	if url := configManager.GetRedisConnectionString(); url != "" {
		redisStore, err := cache.NewRedisStore(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisStore.Close()
		store = redisStore
		checks = append(checks, health.StoreCheck{Store: redisStore})
		logger.Info("Redis graph store enabled")
	}

	registry, err := cache.NewRegistry(cfg.Cache.MaxGraphs, store, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create graph registry")
	}
	metrics := service.NewMetrics(registry.Stats)
	chains := service.NewChainService(registry, cfg.Optimizer, logger, metrics)

	checks = append(checks, health.RegistryCheck{Registry: registry})
	checker := health.NewChecker(api.Version, 5*time.Second, logger, checks...)

	// Create server
	server := api.NewServer(configManager, chains, metrics, logger, api.WithHealthChecker(checker))

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

	logger.WithFields(logrus.Fields{
		"host":          cfg.Server.Host,
		"port":          cfg.Server.Port,
		"default_depth": cfg.Optimizer.DefaultDepth,
		"max_depth":     cfg.Optimizer.MaxDepth,
	}).Info("Starting kidney chain server")

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
