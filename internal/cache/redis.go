package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/kidney-chain-server/internal/domain"
)

const (
	graphKeyPrefix  = "kidney:graph:"
	reportKeyPrefix = "kidney:report:"
)

// RedisStore is a domain.GraphStore backed by Redis. Calls go through a circuit breaker so an
// unavailable Redis degrades the registry to its memory tier instead of stalling requests.
type RedisStore struct {
	redis      *redis.Client
	breaker    *gobreaker.CircuitBreaker
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// CachedGraph is the Redis payload of a graph.
type CachedGraph struct {
	Graph     *domain.CompatibilityGraph `json:"graph"`
	CachedAt  time.Time                  `json:"cached_at"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

// CachedReport is the Redis payload of a chain report.
type CachedReport struct {
	Report    *domain.ChainReport `json:"report"`
	CachedAt  time.Time           `json:"cached_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// NewRedisStore connects to the Redis instance named by config.RedisURL.
func NewRedisStore(config domain.CacheConfig, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, config.DefaultTTL, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, defaultTTL time.Duration, logger *logrus.Logger) *RedisStore {
	if defaultTTL == 0 {
		defaultTTL = 24 * time.Hour
	}

	settings := gobreaker.Settings{
		Name:        "GraphStoreRedis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &RedisStore{
		redis:      client,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// SaveGraph caches a graph under its hash.
func (s *RedisStore) SaveGraph(ctx context.Context, hash string, graph *domain.CompatibilityGraph) error {
	now := time.Now()
	return s.set(ctx, graphKeyPrefix+hash, CachedGraph{
		Graph:     graph,
		CachedAt:  now,
		ExpiresAt: now.Add(s.defaultTTL),
	})
}

// LoadGraph retrieves a cached graph.
func (s *RedisStore) LoadGraph(ctx context.Context, hash string) (*domain.CompatibilityGraph, error) {
	var cached CachedGraph
	found, err := s.get(ctx, graphKeyPrefix+hash, &cached)
	if err != nil {
		return nil, err
	}
	if !found || cached.Graph == nil || time.Now().After(cached.ExpiresAt) {
		return nil, domain.ErrGraphNotFound
	}
	return cached.Graph, nil
}

// SaveReport caches the latest chain report of a graph.
func (s *RedisStore) SaveReport(ctx context.Context, report *domain.ChainReport) error {
	now := time.Now()
	return s.set(ctx, reportKeyPrefix+report.GraphID, CachedReport{
		Report:    report,
		CachedAt:  now,
		ExpiresAt: now.Add(s.defaultTTL),
	})
}

// LoadReport retrieves the latest chain report of a graph.
func (s *RedisStore) LoadReport(ctx context.Context, hash string) (*domain.ChainReport, error) {
	var cached CachedReport
	found, err := s.get(ctx, reportKeyPrefix+hash, &cached)
	if err != nil {
		return nil, err
	}
	if !found || cached.Report == nil || time.Now().After(cached.ExpiresAt) {
		return nil, domain.ErrNoChainBuilt
	}
	return cached.Report, nil
}

// Ping checks connectivity through the circuit breaker.
func (s *RedisStore) Ping(ctx context.Context) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.redis.Ping(ctx).Err()
	})
	return err
}

// BreakerState returns the state of the store's circuit breaker.
func (s *RedisStore) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) set(ctx context.Context, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.redis.Set(ctx, key, data, s.defaultTTL).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// get decodes the value at key into dst. A missing key is not an error.
func (s *RedisStore) get(ctx context.Context, key string, dst interface{}) (bool, error) {
	val, err := s.breaker.Execute(func() (interface{}, error) {
		return s.redis.Get(ctx, key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(val.([]byte), dst); err != nil {
		// Remove corrupted cache entry
		s.redis.Del(ctx, key)
		s.logger.WithField("key", key).Warn("Dropped corrupted cache entry")
		return false, nil
	}
	return true, nil
}
