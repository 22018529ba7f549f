package optimizer

import (
	"fmt"

	"github.com/kidney-chain-server/internal/domain"
)

// candidate is a possible chain step: donor gives to recipient.
type candidate struct {
	recipient string
	donor     string
}

// successorsOfDonor lists the recipients a donor can still give to, in natural identifier
// order. An ignored donor has no successors.
func (w *workingGraph) successorsOfDonor(donor string) []string {
	if w.ignoredDonors.has(donor) {
		return nil
	}
	return sortedKeys(w.donors[donor])
}

// successorsOfPair lists the steps that can follow a recipient: any of its related donors,
// taken from the source graph in declared order, giving to any recipient still reachable.
func (w *workingGraph) successorsOfPair(recipient string) []candidate {
	patient := w.source.Patients[recipient]
	if patient == nil {
		return nil
	}

	var successors []candidate
	for _, donor := range patient.RelatedDonors {
		if w.ignoredDonors.has(donor) {
			continue
		}
		for _, next := range w.successorsOfDonor(donor) {
			successors = append(successors, candidate{recipient: next, donor: donor})
		}
	}
	return successors
}

// edge looks up a donor→recipient compatibility. A miss is recorded in the build log.
func (w *workingGraph) edge(donor, recipient string) (domain.CompatibleDonor, bool) {
	edge, ok := w.donors[donor][recipient]
	if !ok {
		w.recordError(fmt.Sprintf("no compatibility between donor %s and recipient %s", donor, recipient))
	}
	return edge, ok
}

// successProbability is 1 - failure probability of the donor→recipient edge.
func (w *workingGraph) successProbability(donor, recipient string) (float64, bool) {
	edge, ok := w.edge(donor, recipient)
	if !ok {
		return 0, false
	}
	return edge.SuccessProbability(), true
}

func (w *workingGraph) score(donor, recipient string) (float64, bool) {
	edge, ok := w.edge(donor, recipient)
	if !ok {
		return 0, false
	}
	return edge.Score, true
}
