package integrity

import (
	"github.com/ontocore/ontocore-server/internal/dbctx"
)

// FindExtraConceptsInSemanticIndex is §4.6.6: concepts the semantic
// index still carries a row for on branchPath, stated or inferred,
// that the branch's active-concept set no longer contains — rows a
// full sweep's classification pass should have retracted.
func (e *Engine) FindExtraConceptsInSemanticIndex(dbc dbctx.Context, branchPath string) (stated []string, inferred []string, err error) {
	criteria, err := e.substrate.BranchCriteriaOn(dbc, branchPath)
	if err != nil {
		return nil, nil, err
	}
	active, err := e.streamActiveConceptIDs(dbc, criteria)
	if err != nil {
		return nil, nil, err
	}
	activeIDs := make([]string, 0, len(active))
	for id := range active {
		activeIDs = append(activeIDs, id)
	}
	return e.index.ExtraConcepts(dbc.Ctx, branchPath, activeIDs)
}
