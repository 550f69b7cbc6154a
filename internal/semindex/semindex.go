// Package semindex is the QueryConcept semantic index (§3, §4.6,
// §4.7): a per-(branch, concept, stated|inferred) row materialising a
// concept's ancestor closure and attribute map, backed by Neo4j and
// grounded on the teacher's neo4j_concept_graph.go batch-upsert style.
// It backs the minimal ECL fragment (internal/ecl) and the integrity
// engine's semantic-index cross-check (§4.6.6); the integrity engine's
// attribute-reference scans read QueryConcept rows through docstore.
package semindex

import "context"

// Concept is one materialised QueryConcept row.
type Concept struct {
	ConceptID string
	Branch    string
	Stated    bool
	// Ancestors is the concept's full reflexive-transitive-closure
	// ancestor set (not just direct parents), precomputed so ECL
	// evaluation never needs to walk the graph at query time.
	Ancestors []string
	// Attributes maps attribute typeId to the set of destination
	// concept ids it points at, from this concept's stated or
	// inferred relationships/axioms.
	Attributes map[string][]string
}

// Index is the narrow semantic-index contract the integrity engine
// and internal/ecl consume.
type Index interface {
	// Upsert replaces the materialised row (and its edges) for every
	// concept in rows, keyed by (conceptId, branch, stated).
	Upsert(ctx context.Context, rows []Concept) error

	// ConceptsWithAttributeIn returns, for the given branch/stated
	// pair, every concept id whose attribute map points at any of
	// attributeConceptIDs (§4.6 phase C: "ATTR.* ∈ D").
	ConceptsWithAttributeIn(ctx context.Context, branch string, stated bool, attributeConceptIDs []string) ([]string, error)

	// DescendantsOfInclusive returns conceptID plus every concept
	// whose ancestor closure contains it — the reflexive-transitive
	// subtype closure the "<<" ECL fragment needs.
	DescendantsOfInclusive(ctx context.Context, branch string, stated bool, conceptID string) ([]string, error)

	// ExtraConcepts returns, partitioned by stated/inferred, every
	// concept id the index carries for branch that is not present in
	// activeConceptIDs — stale rows a full sweep should have deleted
	// (§4.6.6).
	ExtraConcepts(ctx context.Context, branch string, activeConceptIDs []string) (stated []string, inferred []string, err error)

	Close(ctx context.Context) error
}
