package integrity

import (
	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/docstore"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/owlexpr"
)

// VerifyFix is §4.6.2: confirms a task branch's fix actually resolved
// the bad references its parent code-system branch was carrying.
// fixBranch's parent (the project) must be a descendant of
// parentSystemPath, and both the project and fixBranch must already be
// rebased (base timestamp at or after parentSystemPath's head) —
// otherwise the comparison below would be against a stale parent view.
func (e *Engine) VerifyFix(dbc dbctx.Context, fixBranch, parentSystemPath string) (*Report, error) {
	if !branchstore.IsDescendant(branchstore.ParentPath(fixBranch), parentSystemPath) {
		return nil, apperr.NewRuntimeState("integrity.verifyFix", "fix branch's parent must be a descendant of the parent system branch")
	}

	fixB, err := e.substrate.GetBranch(dbc, fixBranch)
	if err != nil {
		return nil, err
	}
	parentB, err := e.substrate.GetBranch(dbc, parentSystemPath)
	if err != nil {
		return nil, err
	}
	if fixB.BaseTimestamp < parentB.HeadTimestamp {
		return nil, apperr.NewRuntimeState("integrity.verifyFix", "fix branch must be rebased onto the parent system branch before verification")
	}
	if projectPath := branchstore.ParentPath(fixBranch); projectPath != parentSystemPath {
		projectB, err := e.substrate.GetBranch(dbc, projectPath)
		if err != nil {
			return nil, err
		}
		if projectB.BaseTimestamp < parentB.HeadTimestamp {
			return nil, apperr.NewRuntimeState("integrity.verifyFix", "project branch must be rebased onto the parent system branch before verification")
		}
	}

	// Step 1: does the parent system branch still report anything bad?
	parentReport, err := e.checkIncremental(dbc, parentSystemPath, nil)
	if err != nil {
		return nil, err
	}
	// Step 2: nothing left on the parent — fall back to the fix
	// branch's own incremental view and return that as-is.
	if parentReport.Empty() {
		return e.checkIncremental(dbc, fixBranch, nil)
	}

	// Step 3: re-fetch the parent's flagged relationships and axioms
	// as they now stand on the fix branch.
	current, err := e.substrate.BranchCriteriaOn(dbc, fixBranch)
	if err != nil {
		return nil, err
	}
	relIDs := parentReport.relationshipIDs()
	axiomIDs := parentReport.axiomIDs()

	var rels []*domain.Relationship
	if len(relIDs) > 0 {
		rels, err = docstore.Find[*domain.Relationship](dbc, e.store.DB(), current, docstore.Bool(
			[]docstore.Query{
				docstore.Term("active", true),
				docstore.Terms("id", toInterfaceSlice(relIDs)),
			},
			[]docstore.Query{docstore.Term("characteristic_type_id", string(domain.CharacteristicInferred))},
			nil,
		))
		if err != nil {
			return nil, err
		}
	}
	var axioms []*domain.ReferenceSetMember
	if len(axiomIDs) > 0 {
		axioms, err = docstore.Find[*domain.ReferenceSetMember](dbc, e.store.DB(), current, docstore.Bool(
			[]docstore.Query{
				docstore.Term("active", true),
				docstore.Terms("id", toInterfaceSlice(axiomIDs)),
			},
			nil, nil,
		))
		if err != nil {
			return nil, err
		}
	}

	// Step 4: of everything those rows reference, which concepts are
	// still missing or inactive on the fix branch?
	refs := map[string]struct{}{}
	for _, rel := range rels {
		refs[rel.SourceID] = struct{}{}
		refs[rel.TypeID] = struct{}{}
		if !rel.Concrete() {
			refs[rel.DestinationID] = struct{}{}
		}
	}
	for _, member := range axioms {
		expr := member.Field(domain.OWLExpressionField)
		if expr == "" {
			continue
		}
		exprRefs, err := owlexpr.ReferencedConcepts(expr)
		if err != nil {
			return nil, apperr.NewConversion("OWL axiom "+member.ID, err)
		}
		for ref := range exprRefs {
			refs[ref] = struct{}{}
		}
	}
	refIDs := make([]string, 0, len(refs))
	for id := range refs {
		refIDs = append(refIDs, id)
	}
	active, err := e.activeConceptSet(dbc, current, refIDs)
	if err != nil {
		return nil, err
	}
	bad := diffSet(refs, active)

	// Step 5: rebuild the report from whatever is still bad; an empty
	// result means the fix stuck, so clear the branch's stale flag.
	raw := newRawReport()
	for _, rel := range rels {
		raw.addRelationshipIfBad(rel, setContains(bad))
	}
	for _, member := range axioms {
		if err := raw.addAxiomIfBad(member, setContains(bad)); err != nil {
			return nil, err
		}
	}

	report, err := e.enrich(dbc, current, raw)
	if err != nil {
		return nil, err
	}
	if report.Empty() {
		if _, err := e.substrate.UpdateMetadata(dbc, fixBranch, func(m branchstore.Metadata) branchstore.Metadata {
			return m.DeleteNested(branchstore.SectionInternal, branchstore.KeyIntegrityIssue)
		}); err != nil {
			return nil, err
		}
	}
	return report, nil
}
