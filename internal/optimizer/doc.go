// Package optimizer builds kidney paired donation chains.
//
// An Optimizer wraps one immutable domain.CompatibilityGraph. Each call to BuildChain derives a
// private working graph from it (recipients pruned by the exclusion lists, and a donor→recipient
// index), then extends the chain greedily from an altruistic donor. At every step each candidate
// successor is valued by a bounded-depth lookahead:
//
//	value(c) = score(c) + EU(c, depth)
//	EU(n, d) = Σ_i p(t_i) · value(t_i) · Π_{j<i} (1 − p(t_j))
//
// where t_0, t_1, ... are n's successors ranked by value, descending, and p is the success
// probability of the edge. The sum models falling back to the next-best match when a preferred
// transplant fails. Successors are never revisited within one lookahead branch.
//
// The search is exponential in depth and is not interrupted once started; BuildChain only checks
// its context between greedy steps. The result is a heuristic: the chain is locally optimal per
// step, not globally optimal.
//
// Ordering is deterministic. Successors are discovered in related-donor order, then in natural
// recipient identifier order (see domain.SortIDs), and ranking is a stable sort, so ties keep
// discovery order.
//
// An Optimizer holds no per-build state and may be shared by concurrent callers.
package optimizer
