package optimizer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidney-chain-server/internal/domain"
)

// Optimizer plans transplant chains over one compatibility graph.
type Optimizer struct {
	graph  *domain.CompatibilityGraph
	hash   string
	logger *logrus.Logger
}

// Result is the outcome of one BuildChain call.
type Result struct {
	domain.ChainReport

	working *workingGraph
}

// New validates graph and returns an Optimizer over a private copy of it. A nil logger discards
// output.
func New(graph *domain.CompatibilityGraph, logger *logrus.Logger) (*Optimizer, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	source := graph.Clone()
	hash, err := source.Hash()
	if err != nil {
		return nil, err
	}

	return &Optimizer{
		graph:  source,
		hash:   hash,
		logger: logger,
	}, nil
}

// Hash returns the content hash of the graph the optimizer was built from.
func (o *Optimizer) Hash() string {
	return o.hash
}

// BuildChain grows a chain greedily from altruist. Each step evaluates every successor of the
// chain's tail with a lookahead of depth further steps and accepts the most valuable one that
// has no positive crossed test. It stops when no successor remains or the chain reaches
// opts.ChainLength (0 means unbounded).
func (o *Optimizer) BuildChain(ctx context.Context, depth int, altruist string, opts domain.BuildOptions) (*Result, error) {
	if depth < 0 {
		return nil, domain.NewValidationError("depth", "must not be negative", depth)
	}
	if altruist == "" {
		return nil, domain.NewValidationError("altruist", "is required", altruist)
	}
	if opts.ChainLength < 0 {
		return nil, domain.NewValidationError("chain_length", "must not be negative", opts.ChainLength)
	}
	for _, key := range opts.CrossedTests {
		if !domain.ValidCrossedTestKey(key) {
			o.logger.WithField("crossed_test", key).Warn("Crossed test is not of the form recipient-donor and will never match")
		}
	}

	start := time.Now()
	w := newWorkingGraph(o.graph, opts, o.logger)
	crossed := newIDSet(opts.CrossedTests...)

	logger := o.logger.WithFields(logrus.Fields{
		"graph":    o.hash,
		"altruist": altruist,
		"depth":    depth,
	})
	logger.Debug("Building transplant chain")

	chain := domain.Chain{}
	var tail *candidate
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("chain build interrupted after %d steps: %w", len(chain), err)
		}

		var successors []candidate
		if tail == nil {
			for _, recipient := range w.successorsOfDonor(altruist) {
				successors = append(successors, candidate{recipient: recipient, donor: altruist})
			}
		} else {
			successors = w.successorsOfPair(tail.recipient)
		}

		items := make([]valued, 0, len(successors))
		for _, s := range successors {
			score, ok := w.score(s.donor, s.recipient)
			if !ok {
				continue
			}
			items = append(items, valued{
				candidate: s,
				value:     w.expectedUtility(s, nil, depth) + score,
			})
		}
		rankByValue(items)

		w.log.CrossedTests = []domain.CrossedTestHit{}
		next, ok := o.accept(w, items, crossed)
		if !ok {
			break
		}
		chain = append(chain, next)
		tail = &candidate{recipient: next.Recipient, donor: next.Donor}

		logger.WithFields(logrus.Fields{
			"step":      len(chain),
			"donor":     next.Donor,
			"recipient": next.Recipient,
			"value":     next.Value,
		}).Debug("Transplant accepted")

		if opts.ChainLength > 0 && len(chain) >= opts.ChainLength {
			break
		}
	}

	w.log.Candidates = append(domain.Chain{}, chain...)
	elapsed := time.Since(start)

	logger.WithFields(logrus.Fields{
		"transplants": len(chain),
		"elapsed_ms":  elapsed.Milliseconds(),
	}).Info("Transplant chain built")

	return &Result{
		ChainReport: domain.ChainReport{
			GraphID:                  o.hash,
			Altruist:                 altruist,
			Depth:                    depth,
			Chain:                    chain,
			Log:                      *w.log,
			IgnoredDonors:            w.ignoredDonors.list(),
			IgnoredRecipients:        w.ignoredRecipients.list(),
			IgnoreFailureProbability: opts.IgnoreFailureProbability,
			Elapsed:                  elapsed,
			BuiltAt:                  time.Now().UTC(),
		},
		working: w,
	}, nil
}

// accept walks the ranked candidates and commits the first one without a positive crossed test.
// Rejected pairs are detached from the working graph.
func (o *Optimizer) accept(w *workingGraph, items []valued, crossed *idSet) (domain.Transplant, bool) {
	for _, item := range items {
		c := item.candidate
		if crossed.has(domain.CrossedTestKey(c.recipient, c.donor)) {
			w.detachEdge(c.donor, c.recipient)
			w.log.CrossedTests = append(w.log.CrossedTests, domain.CrossedTestHit{Donor: c.donor, Receiver: c.recipient})
			o.logger.WithFields(logrus.Fields{
				"donor":     c.donor,
				"recipient": c.recipient,
			}).Debug("Candidate rejected by positive crossed test")
			continue
		}

		p, ok := w.successProbability(c.donor, c.recipient)
		if !ok {
			continue
		}
		if w.ignoreFailureProbability {
			p = 1
		}

		w.removeDonor(c.donor)
		w.removeRecipient(c.recipient)
		return domain.Transplant{
			Recipient:          c.recipient,
			Donor:              c.donor,
			SuccessProbability: p,
			Value:              item.value,
		}, true
	}
	return domain.Transplant{}, false
}

// ExpectedUtility values the continuation of a chain that currently ends at recipient, with the
// same exclusions a BuildChain call with opts would apply.
func (o *Optimizer) ExpectedUtility(recipient string, depth int, opts domain.BuildOptions) (float64, error) {
	if depth < 0 {
		return 0, domain.NewValidationError("depth", "must not be negative", depth)
	}
	if _, ok := o.graph.Patients[recipient]; !ok {
		return 0, domain.NewValidationError("recipient", "unknown recipient", recipient)
	}
	w := newWorkingGraph(o.graph, opts, o.logger)
	return w.expectedUtility(startNode{recipient: recipient}, nil, depth), nil
}
