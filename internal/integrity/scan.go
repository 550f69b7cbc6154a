package integrity

import (
	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/owlexpr"
)

// rawAxiomHit accumulates, per axiom member, the concept it
// references and the subset of that axiom's referenced concepts found
// to be bad so far; multiple scan passes (phase C, phase E) merge into
// the same entry.
type rawAxiomHit struct {
	referencedComponentID string
	badRefs                map[string]struct{}
}

// rawReport is the mutable accumulator the scan phases write into;
// Engine.enrich projects it into the public Report shape once scanning and
// enrichment are done.
type rawReport struct {
	sourceMap      map[string]string // relationshipId -> conceptId
	typeMap        map[string]string
	destinationMap map[string]string
	axioms         map[string]*rawAxiomHit // memberId -> hit
}

func newRawReport() *rawReport {
	return &rawReport{
		sourceMap:      map[string]string{},
		typeMap:        map[string]string{},
		destinationMap: map[string]string{},
		axioms:         map[string]*rawAxiomHit{},
	}
}

// addRelationshipIfBad records rel in the matching sub-map for every
// one of source/type/destination that isBad reports true for.
// Concrete relationships carry no destinationId (§4.6.1).
func (r *rawReport) addRelationshipIfBad(rel *domain.Relationship, isBad func(string) bool) {
	if isBad(rel.SourceID) {
		r.sourceMap[rel.ID] = rel.SourceID
	}
	if isBad(rel.TypeID) {
		r.typeMap[rel.ID] = rel.TypeID
	}
	if !rel.Concrete() && isBad(rel.DestinationID) {
		r.destinationMap[rel.ID] = rel.DestinationID
	}
}

// addAxiomIfBad parses member's owlExpression and records any
// referenced concept isBad reports true for, merging into any
// existing hit for this member from an earlier scan phase.
func (r *rawReport) addAxiomIfBad(member *domain.ReferenceSetMember, isBad func(string) bool) error {
	expr := member.Field(domain.OWLExpressionField)
	if expr == "" {
		return nil
	}
	refs, err := owlexpr.ReferencedConcepts(expr)
	if err != nil {
		return apperr.NewConversion("OWL axiom "+member.ID, err)
	}
	var bad []string
	for ref := range refs {
		if isBad(ref) {
			bad = append(bad, ref)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	hit, ok := r.axioms[member.ID]
	if !ok {
		hit = &rawAxiomHit{referencedComponentID: member.ReferencedComponentID, badRefs: map[string]struct{}{}}
		r.axioms[member.ID] = hit
	}
	for _, b := range bad {
		hit.badRefs[b] = struct{}{}
	}
	return nil
}

func conceptIDSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func setContains(set map[string]struct{}) func(string) bool {
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

func notInSet(set map[string]struct{}) func(string) bool {
	return func(id string) bool {
		_, ok := set[id]
		return !ok
	}
}

func toInterfaceSlice(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func diffSet(c, a map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for id := range c {
		if _, ok := a[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func unionKeys(sets ...map[string]struct{}) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range sets {
		for id := range s {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}
