package optimizer

import (
	"sort"
)

// node is a position in the lookahead tree. It is either the bare recipient the chain currently
// ends at (startNode) or a hypothetical next step (candidate).
type node interface {
	recipientID() string
}

type startNode struct {
	recipient string
}

func (n startNode) recipientID() string { return n.recipient }

func (c candidate) recipientID() string { return c.recipient }

// valued pairs a candidate with its lookahead value.
type valued struct {
	candidate candidate
	value     float64
}

// rankByValue orders candidates by value, highest first. Ties keep discovery order.
func rankByValue(items []valued) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].value > items[j].value
	})
}

// expectedUtility is the value reachable past n within depth further steps, never stepping onto
// a recipient in visited. The recipient of n is added to the visited list of its own subtree
// only, so sibling branches stay independent.
func (w *workingGraph) expectedUtility(n node, visited []string, depth int) float64 {
	recipient := n.recipientID()

	successors := excludeVisited(w.successorsOfPair(recipient), visited)
	if len(successors) == 0 || depth <= 0 {
		return 0
	}

	branch := make([]string, len(visited), len(visited)+1)
	copy(branch, visited)
	if !contains(branch, recipient) {
		branch = append(branch, recipient)
	}

	items := make([]valued, 0, len(successors))
	for _, s := range successors {
		score, ok := w.score(s.donor, s.recipient)
		if !ok {
			continue
		}
		items = append(items, valued{
			candidate: s,
			value:     w.expectedUtility(s, branch, depth-1) + score,
		})
	}
	rankByValue(items)
	return w.fallbackSum(items)
}

// fallbackSum computes Σ p_i · v_i · Π_{j<i}(1 − p_j) over ranked items. With failure
// probabilities ignored every p is 1 and the product stays 1.
func (w *workingGraph) fallbackSum(items []valued) float64 {
	sum := 0.0
	for i, item := range items {
		p := w.weight(item.candidate)
		sum += p * item.value * w.failurePrefix(items, i)
	}
	return sum
}

// failurePrefix is the probability that all of items[:i] fail.
func (w *workingGraph) failurePrefix(items []valued, i int) float64 {
	if w.ignoreFailureProbability {
		return 1
	}
	product := 1.0
	for _, item := range items[:i] {
		product *= 1 - w.weight(item.candidate)
	}
	return product
}

func (w *workingGraph) weight(c candidate) float64 {
	if w.ignoreFailureProbability {
		return 1
	}
	p, _ := w.successProbability(c.donor, c.recipient)
	return p
}

func excludeVisited(candidates []candidate, visited []string) []candidate {
	if len(visited) == 0 {
		return candidates
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if !contains(visited, c.recipient) {
			out = append(out, c)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
