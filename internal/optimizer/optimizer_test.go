package optimizer

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidney-chain-server/internal/domain"
)

func loadFixture(t *testing.T) *domain.CompatibilityGraph {
	t.Helper()
	data, err := os.ReadFile("../../testdata/tests.json")
	require.NoError(t, err)
	graph, err := domain.ParseGraph(data)
	require.NoError(t, err)
	return graph
}

func newTestOptimizer(t *testing.T) *Optimizer {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	opt, err := New(loadFixture(t), logger)
	require.NoError(t, err)
	return opt
}

type step struct {
	recipient string
	donor     string
	prob      float64
	value     float64
}

func assertChain(t *testing.T, expected []step, chain domain.Chain) {
	t.Helper()
	require.Len(t, chain, len(expected), "chain: %+v", chain)
	for i, want := range expected {
		got := chain[i]
		assert.Equal(t, want.recipient, got.Recipient, "step %d recipient", i)
		assert.Equal(t, want.donor, got.Donor, "step %d donor", i)
		assert.InDelta(t, want.prob, got.SuccessProbability, 1e-9, "step %d probability", i)
		assert.InDelta(t, want.value, got.Value, 1e-6, "step %d value", i)
	}
}

var defaultChain = []step{
	{"2000", "1000", 0.8, 218.05980108},
	{"2004", "3000", 0.9, 191.74448},
	{"2003", "3007", 0.8, 168.6168},
	{"2002", "3006", 0.9, 137.852},
	{"2001", "3003", 0.9, 54.88},
}

func TestNew_RejectsInvalidGraph(t *testing.T) {
	_, err := New(&domain.CompatibilityGraph{}, nil)
	assert.ErrorIs(t, err, domain.ErrMissingPatients)
}

func TestNew_CopiesGraph(t *testing.T) {
	graph := loadFixture(t)
	opt, err := New(graph, nil)
	require.NoError(t, err)

	graph.Patients["2000"].CompatibleDonors = nil

	result, err := opt.BuildChain(context.Background(), 3, "1000", domain.BuildOptions{})
	require.NoError(t, err)
	assertChain(t, defaultChain, result.Chain)
}

func TestBuildChain(t *testing.T) {
	tests := []struct {
		name     string
		depth    int
		altruist string
		opts     domain.BuildOptions
		expected []step
	}{
		{
			name:     "default options",
			depth:    3,
			altruist: "1000",
			expected: defaultChain,
		},
		{
			name:     "ignored recipient",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{IgnoredRecipients: []string{"2003"}},
			expected: []step{
				{"2000", "1000", 0.8, 214.48832},
				{"2002", "3000", 0.8, 154.4915},
				{"2001", "3003", 0.9, 91.935},
				{"2004", "3002", 0.5, 74.11},
			},
		},
		{
			name:     "ignored altruist",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{IgnoredDonors: []string{"1000"}},
			expected: []step{},
		},
		{
			name:     "only reachable recipient ignored",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{IgnoredRecipients: []string{"2000"}},
			expected: []step{},
		},
		{
			name:     "ignored related donor keeps its recipient",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{IgnoredDonors: []string{"3006"}},
			expected: []step{
				{"2000", "1000", 0.8, 216.516488},
				{"2002", "3000", 0.8, 164.815625},
				{"2001", "3003", 0.9, 110.9695},
				{"2004", "3002", 0.5, 112.179},
				{"2003", "3007", 0.8, 44.55},
			},
		},
		{
			name:     "ignored sole related donor",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{IgnoredDonors: []string{"3002"}},
			expected: []step{
				{"2000", "1000", 0.8, 208.79925356},
				{"2004", "3000", 0.9, 191.74448},
				{"2003", "3007", 0.8, 168.6168},
				{"2002", "3006", 0.9, 137.852},
				{"2001", "3003", 0.9, 54.88},
			},
		},
		{
			name:     "every related donor of a recipient ignored",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{IgnoredDonors: []string{"3007", "3008"}},
			expected: []step{
				{"2000", "1000", 0.8, 215.927118},
				{"2003", "3001", 0.5, 174.15589},
				{"2002", "3006", 0.9, 171.2015},
				{"2001", "3003", 0.9, 91.935},
				{"2004", "3002", 0.5, 74.11},
			},
		},
		{
			name:     "crossed test on an unused pair",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{CrossedTests: []string{"2003-3001"}},
			expected: defaultChain,
		},
		{
			name:     "crossed test on the preferred pair",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{CrossedTests: []string{"2004-3000"}},
			expected: []step{
				{"2000", "1000", 0.8, 218.05980108},
				{"2001", "3000", 0.8, 176.541},
				{"2004", "3002", 0.5, 183.8316},
				{"2003", "3007", 0.8, 124.164},
				{"2002", "3006", 0.9, 88.46},
			},
		},
		{
			name:     "failure probability ignored",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{IgnoreFailureProbability: true},
			expected: []step{
				{"2000", "1000", 1, 1709.51},
				{"2004", "3000", 1, 430.72},
				{"2003", "3007", 1, 254.93},
				{"2002", "3006", 1, 210.38},
				{"2001", "3003", 1, 54.88},
			},
		},
		{
			name:     "bounded chain length",
			depth:    3,
			altruist: "1000",
			opts:     domain.BuildOptions{ChainLength: 2},
			expected: defaultChain[:2],
		},
		{
			name:     "depth zero is greedy on score",
			depth:    0,
			altruist: "1000",
			expected: []step{
				{"2000", "1000", 0.8, 58.95},
				{"2001", "3000", 0.8, 89.55},
				{"2004", "3002", 0.5, 74.11},
				{"2003", "3007", 0.8, 44.55},
				{"2002", "3006", 0.9, 76.3},
			},
		},
		{
			name:     "depth one",
			depth:    1,
			altruist: "1000",
			expected: []step{
				{"2000", "1000", 0.8, 142.090436},
				{"2001", "3000", 0.8, 126.605},
				{"2004", "3002", 0.5, 112.179},
				{"2003", "3007", 0.8, 113.22},
				{"2002", "3006", 0.9, 88.46},
			},
		},
		{
			name:     "depth two",
			depth:    2,
			altruist: "1000",
			expected: []step{
				{"2000", "1000", 0.8, 183.986784},
				{"2004", "3000", 0.9, 150.752},
				{"2003", "3007", 0.8, 158.7672},
				{"2002", "3006", 0.9, 137.852},
				{"2001", "3003", 0.9, 54.88},
			},
		},
		{
			name:     "second altruist",
			depth:    3,
			altruist: "1001",
			expected: []step{
				{"2002", "1001", 0.8, 220.22527033475},
				{"2001", "3003", 0.9, 223.177153},
				{"2000", "3002", 0.9, 207.38435},
				{"2004", "3000", 0.9, 88.949},
				{"2003", "3007", 0.8, 44.55},
			},
		},
		{
			name:     "unknown altruist",
			depth:    3,
			altruist: "9999",
			expected: []step{},
		},
	}

	opt := newTestOptimizer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := opt.BuildChain(context.Background(), tt.depth, tt.altruist, tt.opts)
			require.NoError(t, err)
			assertChain(t, tt.expected, result.Chain)
			assert.Equal(t, result.Chain, result.Log.Candidates)
			assert.Equal(t, tt.altruist, result.Altruist)
			assert.Equal(t, tt.depth, result.Depth)
			assert.Equal(t, opt.Hash(), result.GraphID)
		})
	}
}

func TestBuildChain_Validation(t *testing.T) {
	opt := newTestOptimizer(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		depth    int
		altruist string
		opts     domain.BuildOptions
		field    string
	}{
		{name: "negative depth", depth: -1, altruist: "1000", field: "depth"},
		{name: "missing altruist", depth: 3, altruist: "", field: "altruist"},
		{name: "negative chain length", depth: 3, altruist: "1000", opts: domain.BuildOptions{ChainLength: -1}, field: "chain_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := opt.BuildChain(ctx, tt.depth, tt.altruist, tt.opts)
			var validationErr *domain.ValidationError
			require.True(t, errors.As(err, &validationErr), "expected a ValidationError, got %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestBuildChain_MalformedCrossedTestNeverMatches(t *testing.T) {
	logger, hook := test.NewNullLogger()
	opt, err := New(loadFixture(t), logger)
	require.NoError(t, err)

	result, err := opt.BuildChain(context.Background(), 3, "1000", domain.BuildOptions{CrossedTests: []string{"2003", "2004-3000"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"2000", "2001", "2004", "2003", "2002"}, result.Chain.Recipients())

	var warned []interface{}
	for _, entry := range hook.AllEntries() {
		if key, ok := entry.Data["crossed_test"]; ok {
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			warned = append(warned, key)
		}
	}
	assert.Equal(t, []interface{}{"2003"}, warned)
}

func TestBuildChain_CancelledContext(t *testing.T) {
	opt := newTestOptimizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.BuildChain(ctx, 3, "1000", domain.BuildOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildChain_CrossedTestDetachesEdge(t *testing.T) {
	opt := newTestOptimizer(t)

	result, err := opt.BuildChain(context.Background(), 3, "1000", domain.BuildOptions{CrossedTests: []string{"2004-3000"}})
	require.NoError(t, err)

	for _, transplant := range result.Chain {
		assert.False(t, transplant.Recipient == "2004" && transplant.Donor == "3000", "crossed pair used in chain")
	}
	// The hit is logged in the step where it happened; the last step found no candidate.
	assert.Empty(t, result.Log.CrossedTests)
	assert.Empty(t, result.Log.Errors)
}

func TestBuildChain_RecipientWithoutUsableDonorsEndsChain(t *testing.T) {
	opt := newTestOptimizer(t)

	result, err := opt.BuildChain(context.Background(), 3, "1000", domain.BuildOptions{IgnoredDonors: []string{"3000", "3001"}})
	require.NoError(t, err)

	assertChain(t, []step{{"2000", "1000", 0.8, 58.95}}, result.Chain)
	assert.Equal(t, []string{"3000", "3001"}, result.IgnoredDonors)
	assert.Empty(t, result.IgnoredRecipients)
}

func TestBuildChain_PartialDonorExclusionKeepsRecipient(t *testing.T) {
	opt := newTestOptimizer(t)

	result, err := opt.BuildChain(context.Background(), 3, "1000", domain.BuildOptions{IgnoredDonors: []string{"3001"}})
	require.NoError(t, err)

	assert.Empty(t, result.IgnoredRecipients)
	require.NotEmpty(t, result.Chain)
	assert.Equal(t, "2000", result.Chain[0].Recipient)
	assert.NotContains(t, result.Chain.Donors(), "3001")
}

func TestBuildChain_ExclusionsDeduplicated(t *testing.T) {
	opt := newTestOptimizer(t)

	result, err := opt.BuildChain(context.Background(), 1, "1000", domain.BuildOptions{
		IgnoredDonors:     []string{"3008", "3004", "3008"},
		IgnoredRecipients: []string{"2003", "2003"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"3008", "3004"}, result.IgnoredDonors)
	assert.Equal(t, []string{"2003"}, result.IgnoredRecipients)
}

func TestBuildChain_Properties(t *testing.T) {
	graph := loadFixture(t)
	opt := newTestOptimizer(t)

	optionSets := []domain.BuildOptions{
		{},
		{IgnoredRecipients: []string{"2003"}},
		{IgnoredDonors: []string{"3002", "3008"}},
		{CrossedTests: []string{"2004-3000", "2001-3003"}},
		{IgnoreFailureProbability: true},
	}

	for _, altruist := range graph.Altruists {
		for _, opts := range optionSets {
			result, err := opt.BuildChain(context.Background(), 3, altruist, opts)
			require.NoError(t, err)

			seenDonors := map[string]bool{}
			seenRecipients := map[string]bool{}
			crossed := newIDSet(opts.CrossedTests...)
			for _, transplant := range result.Chain {
				assert.False(t, seenDonors[transplant.Donor], "donor %s used twice", transplant.Donor)
				assert.False(t, seenRecipients[transplant.Recipient], "recipient %s used twice", transplant.Recipient)
				seenDonors[transplant.Donor] = true
				seenRecipients[transplant.Recipient] = true

				assert.False(t, crossed.has(domain.CrossedTestKey(transplant.Recipient, transplant.Donor)))
				assert.NotContains(t, result.IgnoredRecipients, transplant.Recipient)
				assert.NotContains(t, result.IgnoredDonors, transplant.Donor)

				expected := 1.0
				if !opts.IgnoreFailureProbability {
					expected = edgeOf(t, graph, transplant.Donor, transplant.Recipient).SuccessProbability()
				}
				assert.InDelta(t, expected, transplant.SuccessProbability, 1e-12)
			}

			for _, id := range result.IgnoredRecipients {
				assert.NotContains(t, result.working.recipients, id)
				for _, edges := range result.working.donors {
					assert.NotContains(t, edges, id)
				}
			}
			for _, id := range result.IgnoredDonors {
				assert.NotContains(t, result.working.donors, id)
			}
		}
	}
}

func edgeOf(t *testing.T, graph *domain.CompatibilityGraph, donor, recipient string) domain.CompatibleDonor {
	t.Helper()
	patient, ok := graph.Patients[recipient]
	require.True(t, ok, "unknown recipient %s", recipient)
	for _, edge := range patient.CompatibleDonors {
		if edge.Donor == donor {
			return edge
		}
	}
	t.Fatalf("no edge %s→%s", donor, recipient)
	return domain.CompatibleDonor{}
}

func TestBuildChain_Idempotent(t *testing.T) {
	opt := newTestOptimizer(t)
	opts := domain.BuildOptions{CrossedTests: []string{"2004-3000"}, IgnoredRecipients: []string{"2002"}}

	first, err := opt.BuildChain(context.Background(), 3, "1000", opts)
	require.NoError(t, err)
	second, err := opt.BuildChain(context.Background(), 3, "1000", opts)
	require.NoError(t, err)

	assert.Equal(t, first.Chain, second.Chain)
	assert.Equal(t, first.IgnoredDonors, second.IgnoredDonors)
	assert.Equal(t, first.IgnoredRecipients, second.IgnoredRecipients)
}

func TestBuildChain_Concurrent(t *testing.T) {
	opt := newTestOptimizer(t)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opts := domain.BuildOptions{}
			if i%2 == 1 {
				opts.IgnoredRecipients = []string{"2003"}
			}
			results[i], errs[i] = opt.BuildChain(context.Background(), 3, "1000", opts)
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.NoError(t, errs[i])
		if i%2 == 0 {
			assertChain(t, defaultChain, result.Chain)
		} else {
			assert.Equal(t, []string{"2000", "2002", "2001", "2004"}, result.Chain.Recipients())
		}
	}
}

func TestExpectedUtility(t *testing.T) {
	opt := newTestOptimizer(t)

	// The first step of the default chain is worth its score plus this continuation.
	value, err := opt.ExpectedUtility("2000", 3, domain.BuildOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 218.05980108-58.95, value, 1e-6)

	value, err = opt.ExpectedUtility("2000", 0, domain.BuildOptions{})
	require.NoError(t, err)
	assert.Zero(t, value)

	_, err = opt.ExpectedUtility("9999", 3, domain.BuildOptions{})
	assert.Error(t, err)
	_, err = opt.ExpectedUtility("2000", -1, domain.BuildOptions{})
	assert.Error(t, err)
}
