package optimizer

import (
	"github.com/kidney-chain-server/internal/domain"
)

// Summary returns the metadata of the underlying graph.
func (o *Optimizer) Summary() domain.Summary {
	return o.graph.Summary()
}

// Graph returns a copy of the underlying graph.
func (o *Optimizer) Graph() *domain.CompatibilityGraph {
	return o.graph.Clone()
}

// RelatedDonors returns the related donors of a recipient as uploaded, or false if the recipient
// is unknown.
func (o *Optimizer) RelatedDonors(recipient string) ([]string, bool) {
	patient, ok := o.graph.Patients[recipient]
	if !ok {
		return nil, false
	}
	return append(make([]string, 0, len(patient.RelatedDonors)), patient.RelatedDonors...), true
}

// UpdatedGraph returns the graph with the given donors and recipients removed, together with every
// edge that references them. Related donors of a removed recipient leave with it. Unknown
// identifiers are ignored.
func (o *Optimizer) UpdatedGraph(ignoredDonors, ignoredRecipients []string) *domain.CompatibilityGraph {
	graph := o.graph.Clone()

	removedDonors := newIDSet(ignoredDonors...)
	for _, id := range ignoredRecipients {
		patient, ok := graph.Patients[id]
		if !ok {
			continue
		}
		removedDonors.add(patient.RelatedDonors...)
		delete(graph.Patients, id)
	}

	graph.Altruists = filterIDs(graph.Altruists, removedDonors)
	for _, patient := range graph.Patients {
		patient.RelatedDonors = filterIDs(patient.RelatedDonors, removedDonors)
		edges := make([]domain.CompatibleDonor, 0, len(patient.CompatibleDonors))
		for _, edge := range patient.CompatibleDonors {
			if !removedDonors.has(edge.Donor) {
				edges = append(edges, edge)
			}
		}
		patient.CompatibleDonors = edges
	}
	return graph
}

// Export is UpdatedGraph for the exclusions accumulated by a build.
func (o *Optimizer) Export(result *Result) *domain.CompatibilityGraph {
	return o.UpdatedGraph(result.IgnoredDonors, result.IgnoredRecipients)
}

func filterIDs(ids []string, removed *idSet) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !removed.has(id) {
			out = append(out, id)
		}
	}
	return out
}
