package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/health"
	"github.com/kidney-chain-server/internal/middleware"
	"github.com/kidney-chain-server/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	chains        *service.ChainService
	metrics       *service.Metrics
	health        *health.Checker
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// Option configures optional server components.
type Option func(*Server)

// WithHealthChecker replaces the default health checker, which has no component checks.
func WithHealthChecker(checker *health.Checker) Option {
	return func(s *Server) {
		s.health = checker
	}
}

// NewServer creates a new HTTP server instance. metrics may be nil, in which case /metrics is not
// served.
func NewServer(configManager domain.ConfigManager, chains *service.ChainService, metrics *service.Metrics, logger *logrus.Logger, opts ...Option) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())

	server := &Server{
		configManager: configManager,
		chains:        chains,
		metrics:       metrics,
		logger:        logger,
		router:        router,
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.health == nil {
		server.health = health.NewChecker(Version, 0, logger)
	}

	// Setup routes
	server.setupRoutes(buildLimiter(cfg.RateLimit))

	return server
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(limiter *rate.Limiter) {
	limit := middleware.RateLimit(limiter)

	s.router.GET("/health", s.health.Handler())
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/graphs", s.handleUpload)
		v1.GET("/graphs/:id/summary", s.handleSummary)
		v1.POST("/graphs/:id/chain", limit, s.handleBuildChain)
		v1.PATCH("/graphs/:id/chain", limit, s.handleBuildChain)
		v1.GET("/graphs/:id/export", s.handleExport)
		v1.GET("/graphs/:id/log", s.handleLog)
		v1.GET("/graphs/:id/recipients/:rid/donors", s.handleRelatedDonors)
	}

	// Routes of the coordinators' web client
	s.router.POST("/cadena-trasplantaments", limit, s.handleLegacyBuildChain)
	s.router.PATCH("/cadena-trasplantaments", limit, s.handleLegacyBuildChain)
	s.router.GET("/resum", s.handleLegacySummary)
	s.router.GET("/fitxer", s.handleLegacyExport)
	s.router.GET("/log", s.handleLegacyLog)
}

func buildLimiter(cfg domain.RateLimitConfig) *rate.Limiter {
	if !cfg.Enabled || cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}
