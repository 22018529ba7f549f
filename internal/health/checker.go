// Package health reports the state of the server's components.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// State is the health of a component or of the whole server.
type State string

const (
	StateHealthy   State = "healthy"
	StateWarning   State = "warning"
	StateUnhealthy State = "unhealthy"
)

// ComponentHealth is the outcome of one check.
type ComponentHealth struct {
	Name     string                 `json:"name"`
	Status   State                  `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Duration time.Duration          `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Status is the aggregated report served by the health endpoint.
type Status struct {
	Status     State             `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Components []ComponentHealth `json:"components"`
}

// Check is a single health check of one component.
type Check interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// Checker runs its checks concurrently and aggregates the results.
type Checker struct {
	checks  []Check
	version string
	timeout time.Duration
	started time.Time
	logger  *logrus.Logger
}

// NewChecker creates a checker. A non-positive timeout defaults to five seconds.
func NewChecker(version string, timeout time.Duration, logger *logrus.Logger, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Checker{
		checks:  checks,
		version: version,
		timeout: timeout,
		started: time.Now(),
		logger:  logger,
	}
}

// Run executes every check and returns the aggregated status. The overall state is the worst
// component state.
func (c *Checker) Run(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]ComponentHealth, len(c.checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range c.checks {
		g.Go(func() error {
			start := time.Now()
			result := check.Check(gctx)
			result.Name = check.Name()
			result.Duration = time.Since(start)
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	overall := StateHealthy
	for _, result := range results {
		switch result.Status {
		case StateUnhealthy:
			overall = StateUnhealthy
		case StateWarning:
			if overall == StateHealthy {
				overall = StateWarning
			}
		}
		if result.Status != StateHealthy {
			c.logger.WithFields(logrus.Fields{
				"component": result.Name,
				"status":    result.Status,
				"message":   result.Message,
			}).Warn("Health check degraded")
		}
	}

	return Status{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Components: results,
	}
}

// Handler serves the aggregated status, with 503 when the server is unhealthy.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		status := c.Run(ctx.Request.Context())
		code := http.StatusOK
		if status.Status == StateUnhealthy {
			code = http.StatusServiceUnavailable
		}
		ctx.JSON(code, status)
	}
}
