package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidney-chain-server/internal/domain"
)

// memoryStore is a domain.GraphStore kept in a map.
type memoryStore struct {
	mu      sync.Mutex
	graphs  map[string]*domain.CompatibilityGraph
	reports map[string]*domain.ChainReport
	loads   atomic.Int32
	delay   time.Duration
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		graphs:  map[string]*domain.CompatibilityGraph{},
		reports: map[string]*domain.ChainReport{},
	}
}

func (s *memoryStore) SaveGraph(_ context.Context, hash string, graph *domain.CompatibilityGraph) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[hash] = graph.Clone()
	return nil
}

func (s *memoryStore) LoadGraph(_ context.Context, hash string) (*domain.CompatibilityGraph, error) {
	s.loads.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	graph, ok := s.graphs[hash]
	if !ok {
		return nil, domain.ErrGraphNotFound
	}
	return graph.Clone(), nil
}

func (s *memoryStore) SaveReport(_ context.Context, report *domain.ChainReport) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.GraphID] = report
	return nil
}

func (s *memoryStore) LoadReport(_ context.Context, hash string) (*domain.ChainReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[hash]
	if !ok {
		return nil, domain.ErrNoChainBuilt
	}
	return report, nil
}

func loadFixture(t *testing.T) *domain.CompatibilityGraph {
	t.Helper()
	data, err := os.ReadFile("../../testdata/tests.json")
	require.NoError(t, err)
	graph, err := domain.ParseGraph(data)
	require.NoError(t, err)
	return graph
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestRegistry_PutAndGet(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(4, nil, quietLogger())
	require.NoError(t, err)

	opt, err := registry.Put(ctx, loadFixture(t))
	require.NoError(t, err)
	assert.Len(t, opt.Hash(), 64)

	again, err := registry.Put(ctx, loadFixture(t))
	require.NoError(t, err)
	assert.Same(t, opt, again)
	assert.Equal(t, 1, registry.Len())

	got, err := registry.Get(ctx, opt.Hash())
	require.NoError(t, err)
	assert.Same(t, opt, got)

	_, err = registry.Get(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	stats := registry.Stats()
	assert.Equal(t, uint64(1), stats.MemoryHits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestRegistry_PutRejectsInvalidGraph(t *testing.T) {
	registry, err := NewRegistry(4, nil, nil)
	require.NoError(t, err)

	_, err = registry.Put(context.Background(), &domain.CompatibilityGraph{})
	assert.ErrorIs(t, err, domain.ErrMissingPatients)
	assert.Zero(t, registry.Len())
}

func TestRegistry_Eviction(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(1, nil, quietLogger())
	require.NoError(t, err)

	first, err := registry.Put(ctx, loadFixture(t))
	require.NoError(t, err)

	other := loadFixture(t)
	other.Description = "another upload"
	_, err = registry.Put(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, 1, registry.Len())
	_, err = registry.Get(ctx, first.Hash())
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
}

func TestRegistry_StoreTier(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	writer, err := NewRegistry(4, store, quietLogger())
	require.NoError(t, err)
	opt, err := writer.Put(ctx, loadFixture(t))
	require.NoError(t, err)
	require.Contains(t, store.graphs, opt.Hash())

	// A second replica finds the graph through the shared store.
	reader, err := NewRegistry(4, store, quietLogger())
	require.NoError(t, err)

	got, err := reader.Get(ctx, opt.Hash())
	require.NoError(t, err)
	assert.Equal(t, opt.Hash(), got.Hash())
	assert.Equal(t, uint64(1), reader.Stats().StoreHits)

	_, err = reader.Get(ctx, opt.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), reader.Stats().MemoryHits)
	assert.Equal(t, int32(1), store.loads.Load())
}

func TestRegistry_ConcurrentMissesShareOneLoad(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.delay = 50 * time.Millisecond

	writer, err := NewRegistry(4, store, quietLogger())
	require.NoError(t, err)
	opt, err := writer.Put(ctx, loadFixture(t))
	require.NoError(t, err)

	reader, err := NewRegistry(4, store, quietLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := reader.Get(ctx, opt.Hash())
			assert.NoError(t, err)
			assert.Equal(t, opt.Hash(), got.Hash())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), store.loads.Load())
}

func TestRegistry_StoreFailureDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.err = errors.New("connection refused")

	registry, err := NewRegistry(4, store, quietLogger())
	require.NoError(t, err)

	opt, err := registry.Put(ctx, loadFixture(t))
	require.NoError(t, err)

	got, err := registry.Get(ctx, opt.Hash())
	require.NoError(t, err)
	assert.Same(t, opt, got)

	_, err = registry.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrGraphNotFound)
	assert.Equal(t, uint64(2), registry.Stats().StoreErrs)

	_, err = registry.LastReport(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNoChainBuilt)
	assert.Equal(t, uint64(3), registry.Stats().StoreErrs)
}

func TestRegistry_Reports(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	registry, err := NewRegistry(4, store, quietLogger())
	require.NoError(t, err)

	_, err = registry.LastReport(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNoChainBuilt)

	report := &domain.ChainReport{GraphID: "abc", Altruist: "1000", Depth: 3}
	registry.SaveReport(ctx, report)

	got, err := registry.LastReport(ctx, "abc")
	require.NoError(t, err)
	assert.Same(t, report, got)

	replica, err := NewRegistry(4, store, quietLogger())
	require.NoError(t, err)
	got, err = replica.LastReport(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "1000", got.Altruist)
}
