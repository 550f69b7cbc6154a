package integrity

import (
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/docstore"
	"github.com/ontocore/ontocore-server/internal/domain"
)

// FindAllComponentsWithBadIntegrity is §4.6.3: the full-branch sweep
// used where the incremental check does not apply — MAIN, or any
// branch whose history is too deep to trust unpromoted-changes
// scoping alone. stated selects which characteristic type of
// relationship is scanned (non-INFERRED vs INFERRED); only the stated
// pass additionally walks the axiom-bearing semantic index, since
// inferred relationships have no corresponding OWL expression.
func (e *Engine) FindAllComponentsWithBadIntegrity(dbc dbctx.Context, branchPath string, stated bool) (*Report, error) {
	criteria, err := e.substrate.BranchCriteriaOn(dbc, branchPath)
	if err != nil {
		return nil, err
	}

	active, err := e.streamActiveConceptIDs(dbc, criteria)
	if err != nil {
		return nil, err
	}

	raw := newRawReport()

	var charMust, charMustNot []docstore.Query
	if stated {
		charMustNot = []docstore.Query{docstore.Term("characteristic_type_id", string(domain.CharacteristicInferred))}
	} else {
		charMust = []docstore.Query{docstore.Term("characteristic_type_id", string(domain.CharacteristicInferred))}
	}
	relQuery := docstore.Bool(append([]docstore.Query{docstore.Term("active", true)}, charMust...), charMustNot, nil)

	stream := docstore.NewStream[*domain.Relationship](dbc, e.store.DB(), criteria, relQuery, FullScanPageSize)
	defer stream.Close()
	for {
		rel, ok, err := stream.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		raw.addRelationshipIfBad(rel, notInSet(active))
	}

	if stated {
		if err := e.scanStatedAxiomsAgainst(dbc, branchPath, criteria, notInSet(active), raw); err != nil {
			return nil, err
		}
	}

	return e.enrich(dbc, criteria, raw)
}

// streamActiveConceptIDs pages every active concept on criteria,
// since a full sweep's candidate set is the entire branch rather than
// a handful of ids a Find call could fetch in one shot.
func (e *Engine) streamActiveConceptIDs(dbc dbctx.Context, criteria branchstore.BranchCriteria) (map[string]struct{}, error) {
	stream := docstore.NewStream[*domain.Concept](dbc, e.store.DB(), criteria, docstore.Term("active", true), FullScanPageSize)
	defer stream.Close()
	out := map[string]struct{}{}
	for {
		c, ok, err := stream.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out[c.ID] = struct{}{}
	}
	return out, nil
}
