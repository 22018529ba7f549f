package optimizer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kidney-chain-server/internal/domain"
)

// idSet is a set of identifiers that remembers insertion order.
type idSet struct {
	order   []string
	members map[string]struct{}
}

func newIDSet(ids ...string) *idSet {
	s := &idSet{members: make(map[string]struct{}, len(ids))}
	s.add(ids...)
	return s
}

func (s *idSet) add(ids ...string) {
	for _, id := range ids {
		if _, ok := s.members[id]; ok {
			continue
		}
		s.members[id] = struct{}{}
		s.order = append(s.order, id)
	}
}

func (s *idSet) has(id string) bool {
	_, ok := s.members[id]
	return ok
}

func (s *idSet) list() []string {
	return append(make([]string, 0, len(s.order)), s.order...)
}

// workingGraph is the mutable state of one chain build. It is created by BuildChain, never
// shared, and discarded (or kept read-only inside the Result) once the build returns.
type workingGraph struct {
	source *domain.CompatibilityGraph

	// recipients is a pruned deep copy of source.Patients.
	recipients map[string]*domain.Patient
	// donors maps donor → recipient → edge; the transpose of recipients' compatible donors.
	donors map[string]map[string]domain.CompatibleDonor
	// associated maps a related donor to the recipient it belongs to.
	associated map[string]string

	ignoredDonors            *idSet
	ignoredRecipients        *idSet
	ignoreFailureProbability bool

	log    *domain.BuildLog
	logger *logrus.Logger
}

func newWorkingGraph(source *domain.CompatibilityGraph, opts domain.BuildOptions, logger *logrus.Logger) *workingGraph {
	w := &workingGraph{
		source:                   source,
		ignoredDonors:            newIDSet(),
		ignoredRecipients:        newIDSet(),
		ignoreFailureProbability: opts.IgnoreFailureProbability,
		log: &domain.BuildLog{
			Candidates:   domain.Chain{},
			CrossedTests: []domain.CrossedTestHit{},
			Errors:       []string{},
		},
		logger: logger,
	}
	w.ignoredDonors.add(opts.IgnoredDonors...)
	w.ignoredRecipients.add(opts.IgnoredRecipients...)
	w.initializeRecipients(opts.IgnoredRecipients)
	w.initializeDonors(opts.IgnoredDonors)
	return w
}

// initializeRecipients copies the source patients, drops ignored recipients and indexes every
// related donor that is not ignored by the recipient it belongs to. Ignored related donors stay
// in the patient record; they are skipped when successors are listed.
func (w *workingGraph) initializeRecipients(ignoredRecipients []string) {
	w.recipients = make(map[string]*domain.Patient, len(w.source.Patients))
	for id, patient := range w.source.Patients {
		w.recipients[id] = patient.Clone()
	}
	for _, id := range ignoredRecipients {
		delete(w.recipients, id)
	}

	w.associated = make(map[string]string)
	for _, id := range sortedKeys(w.recipients) {
		for _, donor := range w.recipients[id].RelatedDonors {
			if w.ignoredDonors.has(donor) {
				continue
			}
			w.associated[donor] = id
		}
	}
}

// initializeDonors detaches associated donors that are ignored from their recipients, removing a
// recipient once none of its related donors is left, and rebuilds the donor index without
// ignored donors. Donors ignored from the start were never associated, so their recipients stay
// in the graph as possible chain ends.
func (w *workingGraph) initializeDonors(ignoredDonors []string) {
	for _, donor := range ignoredDonors {
		recipientID, ok := w.associated[donor]
		if !ok {
			continue
		}
		patient, ok := w.recipients[recipientID]
		if !ok {
			continue
		}
		patient.RelatedDonors = without(patient.RelatedDonors, donor)
		w.ignoredDonors.add(donor)
		if len(patient.RelatedDonors) == 0 {
			w.ignoredRecipients.add(recipientID)
			delete(w.recipients, recipientID)
			w.logger.WithFields(logrus.Fields{
				"recipient": recipientID,
				"donor":     donor,
			}).Debug("Recipient excluded: every related donor is ignored")
		}
	}

	w.donors = make(map[string]map[string]domain.CompatibleDonor)
	for recipientID, patient := range w.recipients {
		for _, edge := range patient.CompatibleDonors {
			if w.ignoredDonors.has(edge.Donor) {
				continue
			}
			if w.donors[edge.Donor] == nil {
				w.donors[edge.Donor] = make(map[string]domain.CompatibleDonor)
			}
			w.donors[edge.Donor][recipientID] = edge
		}
	}
}

// removeDonor takes a donor out of the index; a donor gives at most once per chain.
func (w *workingGraph) removeDonor(donor string) {
	delete(w.donors, donor)
}

// removeRecipient deletes a recipient together with every edge that points to it.
func (w *workingGraph) removeRecipient(recipient string) {
	patient, ok := w.recipients[recipient]
	if !ok {
		w.recordError(fmt.Sprintf("recipient %s is not in the working graph", recipient))
		return
	}
	for _, edge := range patient.CompatibleDonors {
		if edges := w.donors[edge.Donor]; edges != nil {
			delete(edges, recipient)
		}
	}
	delete(w.recipients, recipient)
}

// detachEdge removes a single donor→recipient compatibility, e.g. after a positive crossed test.
func (w *workingGraph) detachEdge(donor, recipient string) {
	if edges := w.donors[donor]; edges != nil {
		delete(edges, recipient)
	}

	patient, ok := w.recipients[recipient]
	if !ok {
		w.recordError(fmt.Sprintf("recipient %s is not in the working graph", recipient))
		return
	}
	for i, edge := range patient.CompatibleDonors {
		if edge.Donor == donor {
			patient.CompatibleDonors = append(patient.CompatibleDonors[:i:i], patient.CompatibleDonors[i+1:]...)
			return
		}
	}
	w.recordError(fmt.Sprintf("donor %s is not a compatible donor of recipient %s", donor, recipient))
}

func (w *workingGraph) recordError(msg string) {
	w.log.Errors = append(w.log.Errors, msg)
	w.logger.WithField("error", msg).Warn("Chain build diagnostic")
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	domain.SortIDs(keys)
	return keys
}
