// Package domain contains the core entities of kidney paired donation (KPD) chain planning:
// the compatibility graph uploaded by a transplant coordination office, the transplant chain
// produced by the optimizer, and the options and diagnostics that travel with a chain build.
//
// A compatibility graph lists patients (recipients). Each patient brings one or more related
// donors, who are medically incompatible with their own patient but are offered into the pool,
// and a list of compatible donors, each with a match score and a failure probability. Altruistic
// donors have no patient and start chains.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Sentinel errors
var (
	ErrMissingPatients  = errors.New("compatibility graph has no patients")
	ErrGraphNotFound    = errors.New("compatibility graph not found")
	ErrNoChainBuilt     = errors.New("no chain has been built for this graph")
	ErrStoreUnavailable = errors.New("shared graph store unavailable")
)

// CompatibleDonor is an edge of the compatibility graph: a donor medically matched to the
// recipient that lists it.
type CompatibleDonor struct {
	Donor       string  `json:"donor"`
	Score       float64 `json:"score"`
	FailureProb float64 `json:"failure_prob"`
}

// SuccessProbability returns 1 - failure probability.
func (c CompatibleDonor) SuccessProbability() float64 {
	return 1 - c.FailureProb
}

// Patient is a recipient of the compatibility graph.
type Patient struct {
	RelatedDonors    []string          `json:"related_donors"`
	CompatibleDonors []CompatibleDonor `json:"compatible_donors"`
}

// Clone returns a deep copy of the patient.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	clone := &Patient{}
	if p.RelatedDonors != nil {
		clone.RelatedDonors = append(make([]string, 0, len(p.RelatedDonors)), p.RelatedDonors...)
	}
	if p.CompatibleDonors != nil {
		clone.CompatibleDonors = append(make([]CompatibleDonor, 0, len(p.CompatibleDonors)), p.CompatibleDonors...)
	}
	return clone
}

// CompatibilityGraph is the immutable input of the optimizer.
type CompatibilityGraph struct {
	Origin      string              `json:"origin"`
	Description string              `json:"description"`
	Altruists   []string            `json:"altruists"`
	Patients    map[string]*Patient `json:"patients"`
}

// Summary is the metadata view of a graph returned to clients before a chain is built.
type Summary struct {
	Origin      string   `json:"origin"`
	Description string   `json:"description"`
	Altruists   []string `json:"altruists"`
}

// ParseGraph decodes a JSON compatibility graph and validates it.
func ParseGraph(data []byte) (*CompatibilityGraph, error) {
	var graph CompatibilityGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, NewValidationError("graph", fmt.Sprintf("malformed JSON: %v", err), nil)
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return &graph, nil
}

// Validate checks the fields the optimizer relies on. Malformed input is rejected as a whole;
// no partial recovery is attempted.
func (g *CompatibilityGraph) Validate() error {
	if g == nil || g.Patients == nil {
		return fmt.Errorf("%w: %w", ErrMissingPatients, NewValidationError("patients", "field is required", nil))
	}

	for _, id := range g.PatientIDs() {
		patient := g.Patients[id]
		if id == "" {
			return NewValidationError("patients", "recipient identifier must not be empty", id)
		}
		if patient == nil {
			return NewValidationError(fmt.Sprintf("patients.%s", id), "patient record is null", nil)
		}
		for i, donor := range patient.RelatedDonors {
			if donor == "" {
				return NewValidationError(fmt.Sprintf("patients.%s.related_donors[%d]", id, i), "donor identifier must not be empty", donor)
			}
		}
		for i, edge := range patient.CompatibleDonors {
			field := fmt.Sprintf("patients.%s.compatible_donors[%d]", id, i)
			if edge.Donor == "" {
				return NewValidationError(field+".donor", "donor identifier must not be empty", edge.Donor)
			}
			if math.IsNaN(edge.Score) || math.IsInf(edge.Score, 0) {
				return NewValidationError(field+".score", "score must be a finite number", edge.Score)
			}
			if math.IsNaN(edge.FailureProb) || edge.FailureProb < 0 || edge.FailureProb > 1 {
				return NewValidationError(field+".failure_prob", "failure probability must be within [0,1]", edge.FailureProb)
			}
		}
	}
	return nil
}

// PatientIDs returns the recipient identifiers in natural order.
func (g *CompatibilityGraph) PatientIDs() []string {
	ids := make([]string, 0, len(g.Patients))
	for id := range g.Patients {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// Clone returns a deep copy of the graph.
func (g *CompatibilityGraph) Clone() *CompatibilityGraph {
	if g == nil {
		return nil
	}
	clone := &CompatibilityGraph{
		Origin:      g.Origin,
		Description: g.Description,
	}
	if g.Altruists != nil {
		clone.Altruists = append(make([]string, 0, len(g.Altruists)), g.Altruists...)
	}
	if g.Patients != nil {
		clone.Patients = make(map[string]*Patient, len(g.Patients))
		for id, patient := range g.Patients {
			clone.Patients[id] = patient.Clone()
		}
	}
	return clone
}

// Summary returns the graph metadata.
func (g *CompatibilityGraph) Summary() Summary {
	altruists := make([]string, len(g.Altruists))
	copy(altruists, g.Altruists)
	return Summary{
		Origin:      g.Origin,
		Description: g.Description,
		Altruists:   altruists,
	}
}

// SortIDs sorts identifiers in natural order: integer-like identifiers first, ascending by
// numeric value, then every other identifier lexicographically.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return LessID(ids[i], ids[j])
	})
}

// LessID reports whether identifier a sorts before b in natural order.
func LessID(a, b string) bool {
	na, aok := numericID(a)
	nb, bok := numericID(b)
	switch {
	case aok && bok:
		if na != nb {
			return na < nb
		}
		return a < b
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}

// numericID parses canonical non-negative integers ("0", "2001"); leading zeros and signs are
// treated as plain strings.
func numericID(id string) (uint64, bool) {
	if id == "" || len(id) > 19 || (len(id) > 1 && id[0] == '0') {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}
