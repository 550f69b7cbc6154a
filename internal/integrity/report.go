// Package integrity is the reference-integrity engine (C6, §4.6):
// detecting relationships and logical axioms that point at concepts
// missing or inactive on a branch, incrementally over unpromoted
// changes, via a branch-hierarchy-aware fix-verification mode, or as a
// full-branch sweep, plus the commit-time hook that clears a branch's
// stale integrityIssue flag once a fix lands.
package integrity

// ConceptMini is the compact concept descriptor attached to axiom
// report entries (§4.6.4).
type ConceptMini struct {
	ID                        string   `json:"id"`
	FSN                       string   `json:"fsn,omitempty"`
	PT                        string   `json:"pt,omitempty"`
	MissingOrInactiveConcepts []string `json:"missingOrInactiveConcepts"`
}

// Report is the JSON-serialisable integrity report shape (§6). Empty
// sub-maps are omitted by the `omitempty` tags; Empty reports whether
// every sub-map is absent or empty.
type Report struct {
	RelationshipsWithMissingOrInactiveSource      map[string]string      `json:"relationshipsWithMissingOrInactiveSource,omitempty"`
	RelationshipsWithMissingOrInactiveType        map[string]string      `json:"relationshipsWithMissingOrInactiveType,omitempty"`
	RelationshipsWithMissingOrInactiveDestination map[string]string      `json:"relationshipsWithMissingOrInactiveDestination,omitempty"`
	AxiomsWithMissingOrInactiveReferencedConcept  map[string]ConceptMini `json:"axiomsWithMissingOrInactiveReferencedConcept,omitempty"`
}

func newReport() *Report {
	return &Report{
		RelationshipsWithMissingOrInactiveSource:      map[string]string{},
		RelationshipsWithMissingOrInactiveType:        map[string]string{},
		RelationshipsWithMissingOrInactiveDestination: map[string]string{},
		AxiomsWithMissingOrInactiveReferencedConcept:  map[string]ConceptMini{},
	}
}

// Empty reports whether the report carries no findings at all.
func (r *Report) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.RelationshipsWithMissingOrInactiveSource) == 0 &&
		len(r.RelationshipsWithMissingOrInactiveType) == 0 &&
		len(r.RelationshipsWithMissingOrInactiveDestination) == 0 &&
		len(r.AxiomsWithMissingOrInactiveReferencedConcept) == 0
}

// relationshipIDs returns the union of relationship ids named across
// the three relationship sub-maps, used by fix verification to know
// which relationships to re-fetch on the fix branch.
func (r *Report) relationshipIDs() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(m map[string]string) {
		for id := range m {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	add(r.RelationshipsWithMissingOrInactiveSource)
	add(r.RelationshipsWithMissingOrInactiveType)
	add(r.RelationshipsWithMissingOrInactiveDestination)
	return out
}

func (r *Report) axiomIDs() []string {
	out := make([]string, 0, len(r.AxiomsWithMissingOrInactiveReferencedConcept))
	for id := range r.AxiomsWithMissingOrInactiveReferencedConcept {
		out = append(out, id)
	}
	return out
}
