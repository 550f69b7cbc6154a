package integrity

import (
	"github.com/google/uuid"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/docstore"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/logger"
	"github.com/ontocore/ontocore-server/internal/owlexpr"
	"github.com/ontocore/ontocore-server/internal/semindex"
)

// FullScanPageSize is the fixed page size every full-branch scan uses,
// so a sweep streams rather than materialises an entire branch (§5
// "resource scoping").
const FullScanPageSize = 5000

// CodeSystems is the lookup the commit-time hook needs: whether a
// branch itself carries a code system, and which ancestor (if any)
// owns it (§4.6.5).
type CodeSystems interface {
	ExistsOnBranch(dbc dbctx.Context, branchPath string) (bool, error)
	OwningBranch(dbc dbctx.Context, branchPath string) (string, bool, error)
}

// Engine implements C6 against a concrete substrate, document store
// and semantic index; it never mutates domain rows itself, aside from
// the commit-time hook's own integrityIssue flag bookkeeping (§5
// "composes with any concurrent reader").
type Engine struct {
	substrate   branchstore.Substrate
	store       *docstore.Store
	codeSystems CodeSystems
	index       semindex.Index
	log         *logger.Logger
}

func NewEngine(substrate branchstore.Substrate, store *docstore.Store, codeSystems CodeSystems, index semindex.Index, baseLog *logger.Logger) *Engine {
	return &Engine{
		substrate:   substrate,
		store:       store,
		codeSystems: codeSystems,
		index:       index,
		log:         baseLog.With("component", "integrity.Engine"),
	}
}

// FindChangedComponentsWithBadIntegrityNotFixed is §4.6.1: refuses to
// run on MAIN (root), where only the full sweep applies.
func (e *Engine) FindChangedComponentsWithBadIntegrityNotFixed(dbc dbctx.Context, branchPath string) (*Report, error) {
	if branchstore.IsRoot(branchPath) {
		return nil, apperr.NewRuntimeState("integrity.incremental", "incremental integrity check is not supported on MAIN; use the full sweep")
	}
	return e.checkIncremental(dbc, branchPath, nil)
}

// checkIncremental is the shared implementation behind the ad-hoc
// entry point and the commit-time hook, which additionally needs the
// in-flight open commit's own writes folded into both the "changed"
// and "current" views (§4.6.5).
func (e *Engine) checkIncremental(dbc dbctx.Context, branchPath string, openCommitID *uuid.UUID) (*Report, error) {
	unpromoted, err := e.substrate.BranchCriteriaUnpromotedChangesAndDeletions(dbc, branchPath)
	if err != nil {
		return nil, err
	}
	var current branchstore.BranchCriteria
	if openCommitID != nil {
		unpromoted.OpenCommitID = openCommitID.String()
		current, err = e.substrate.BranchCriteriaIncludingOpenCommit(dbc, branchPath, *openCommitID)
	} else {
		current, err = e.substrate.BranchCriteriaOn(dbc, branchPath)
	}
	if err != nil {
		return nil, err
	}

	// Phase A: D = (concepts changed-or-deleted in unpromoted changes) \ (those still active on the current view).
	changedConcepts, err := docstore.Find[*domain.Concept](dbc, e.store.DB(), unpromoted, docstore.Query{})
	if err != nil {
		return nil, err
	}
	changedIDs := make([]string, 0, len(changedConcepts))
	for _, c := range changedConcepts {
		changedIDs = append(changedIDs, c.ID)
	}
	activeOfChanged, err := e.activeConceptSet(dbc, current, changedIDs)
	if err != nil {
		return nil, err
	}
	d := diffSet(conceptIDSet(changedIDs), activeOfChanged)

	raw := newRawReport()

	changedRelationships, err := e.changedActiveNonInferredRelationships(dbc, unpromoted)
	if err != nil {
		return nil, err
	}
	for _, rel := range changedRelationships {
		raw.addRelationshipIfBad(rel, setContains(d))
	}

	changedAxioms, err := e.changedActiveAxioms(dbc, unpromoted)
	if err != nil {
		return nil, err
	}

	// Phase C: axioms whose stated-semantic-index row mentions any concept in D.
	if len(d) > 0 {
		if err := e.scanStatedAxiomsAgainst(dbc, branchPath, current, setContains(d), raw); err != nil {
			return nil, err
		}
	}

	// Phase D: R = every concept referenced by a changed relationship or changed axiom, regardless of D.
	r := map[string]struct{}{}
	for _, rel := range changedRelationships {
		r[rel.SourceID] = struct{}{}
		r[rel.TypeID] = struct{}{}
		if !rel.Concrete() {
			r[rel.DestinationID] = struct{}{}
		}
	}
	axiomRefs := make(map[string]map[string]struct{}, len(changedAxioms)) // memberId -> referenced concepts
	for _, member := range changedAxioms {
		expr := member.Field(domain.OWLExpressionField)
		if expr == "" {
			continue
		}
		refs, err := owlexpr.ReferencedConcepts(expr)
		if err != nil {
			return nil, apperr.NewConversion("OWL axiom "+member.ID, err)
		}
		axiomRefs[member.ID] = refs
		for ref := range refs {
			r[ref] = struct{}{}
		}
	}

	// Phase E: of R, anything not active on the current view is also bad; fan back into the same maps.
	rIDs := make([]string, 0, len(r))
	for id := range r {
		rIDs = append(rIDs, id)
	}
	rActive, err := e.activeConceptSet(dbc, current, rIDs)
	if err != nil {
		return nil, err
	}
	rBad := diffSet(r, rActive)
	if len(rBad) > 0 {
		for _, rel := range changedRelationships {
			raw.addRelationshipIfBad(rel, setContains(rBad))
		}
		for _, member := range changedAxioms {
			refs, ok := axiomRefs[member.ID]
			if !ok {
				continue
			}
			var bad []string
			for ref := range refs {
				if _, isBad := rBad[ref]; isBad {
					bad = append(bad, ref)
				}
			}
			if len(bad) == 0 {
				continue
			}
			hit, ok := raw.axioms[member.ID]
			if !ok {
				hit = &rawAxiomHit{referencedComponentID: member.ReferencedComponentID, badRefs: map[string]struct{}{}}
				raw.axioms[member.ID] = hit
			}
			for _, b := range bad {
				hit.badRefs[b] = struct{}{}
			}
		}
	}

	// Phase F: enrich and assemble.
	return e.enrich(dbc, current, raw)
}

// activeConceptSet fetches every concept in ids on criteria and
// returns the subset that is active. Ids absent from the store are
// simply not present in the result, which callers treat the same as
// "inactive" (missing or inactive, §3).
func (e *Engine) activeConceptSet(dbc dbctx.Context, criteria branchstore.BranchCriteria, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}
	concepts, err := docstore.Find[*domain.Concept](dbc, e.store.DB(), criteria, docstore.Terms("id", toInterfaceSlice(ids)))
	if err != nil {
		return nil, err
	}
	out := map[string]struct{}{}
	for _, c := range concepts {
		if c.Active {
			out[c.ID] = struct{}{}
		}
	}
	return out, nil
}

func (e *Engine) changedActiveNonInferredRelationships(dbc dbctx.Context, criteria branchstore.BranchCriteria) ([]*domain.Relationship, error) {
	return docstore.Find[*domain.Relationship](dbc, e.store.DB(), criteria, docstore.Bool(
		[]docstore.Query{docstore.Term("active", true)},
		[]docstore.Query{docstore.Term("characteristic_type_id", string(domain.CharacteristicInferred))},
		nil,
	))
}

func (e *Engine) changedActiveAxioms(dbc dbctx.Context, criteria branchstore.BranchCriteria) ([]*domain.ReferenceSetMember, error) {
	return docstore.Find[*domain.ReferenceSetMember](dbc, e.store.DB(), criteria, docstore.Bool(
		[]docstore.Query{
			docstore.Term("active", true),
			docstore.Term("refset_id", domain.OWLAxiomReferenceSetID),
		},
		nil, nil,
	))
}

// scanStatedAxiomsAgainst implements §4.6.1 phase C / §4.6.3's stated
// branch of the full sweep: find stated QueryConcept rows whose
// attribute map mentions a concept isBad reports true for, then
// re-check the corresponding OWL-axiom members by parsing their
// owlExpression. The incremental check passes setContains over its
// small diff set D; the full sweep passes notInSet over the branch's
// entire active-concept set, since there D would be unbounded.
func (e *Engine) scanStatedAxiomsAgainst(dbc dbctx.Context, branchPath string, current branchstore.BranchCriteria, isBad func(string) bool, raw *rawReport) error {
	statedRows, err := e.store.FindQueryConcepts(dbc, branchPath, true)
	if err != nil {
		return err
	}
	var candidateConceptIDs []string
	for _, row := range statedRows {
		for _, typeID := range row.AttrTypes() {
			for _, dest := range row.AttrValues(typeID) {
				if isBad(dest) {
					candidateConceptIDs = append(candidateConceptIDs, row.ConceptID)
					break
				}
			}
		}
	}
	if len(candidateConceptIDs) == 0 {
		return nil
	}
	axioms, err := docstore.Find[*domain.ReferenceSetMember](dbc, e.store.DB(), current, docstore.Bool(
		[]docstore.Query{
			docstore.Term("active", true),
			docstore.Term("refset_id", domain.OWLAxiomReferenceSetID),
			docstore.Terms("referenced_component_id", toInterfaceSlice(candidateConceptIDs)),
		},
		nil, nil,
	))
	if err != nil {
		return err
	}
	for _, axiom := range axioms {
		if err := raw.addAxiomIfBad(axiom, isBad); err != nil {
			return err
		}
	}
	return nil
}

// enrich implements §4.6.4: attach a compact concept descriptor and
// the set of missing-or-inactive concepts to every axiom entry, and
// project rawReport into the public Report shape.
func (e *Engine) enrich(dbc dbctx.Context, criteria branchstore.BranchCriteria, raw *rawReport) (*Report, error) {
	report := newReport()
	report.RelationshipsWithMissingOrInactiveSource = raw.sourceMap
	report.RelationshipsWithMissingOrInactiveType = raw.typeMap
	report.RelationshipsWithMissingOrInactiveDestination = raw.destinationMap

	if len(raw.axioms) == 0 {
		return report, nil
	}

	descriptionConceptIDs := make([]string, 0, len(raw.axioms))
	for _, hit := range raw.axioms {
		descriptionConceptIDs = append(descriptionConceptIDs, hit.referencedComponentID)
	}
	terms, err := e.shortTerms(dbc, criteria, descriptionConceptIDs)
	if err != nil {
		return nil, err
	}

	for memberID, hit := range raw.axioms {
		missing := make([]string, 0, len(hit.badRefs))
		for ref := range hit.badRefs {
			missing = append(missing, ref)
		}
		mini := ConceptMini{
			ID:                        hit.referencedComponentID,
			MissingOrInactiveConcepts: missing,
		}
		if t, ok := terms[hit.referencedComponentID]; ok {
			mini.FSN = t.fsn
			mini.PT = t.pt
		}
		report.AxiomsWithMissingOrInactiveReferencedConcept[memberID] = mini
	}
	return report, nil
}

type shortTerm struct {
	fsn string
	pt  string
}

// shortTerms joins active FSN and a best-effort preferred-term
// description onto conceptIDs (§4.6.4).
func (e *Engine) shortTerms(dbc dbctx.Context, criteria branchstore.BranchCriteria, conceptIDs []string) (map[string]shortTerm, error) {
	if len(conceptIDs) == 0 {
		return nil, nil
	}
	descriptions, err := docstore.Find[*domain.Description](dbc, e.store.DB(), criteria, docstore.Bool(
		[]docstore.Query{
			docstore.Term("active", true),
			docstore.Terms("concept_id", toInterfaceSlice(conceptIDs)),
		},
		nil, nil,
	))
	if err != nil {
		return nil, err
	}
	out := make(map[string]shortTerm, len(conceptIDs))
	for _, d := range descriptions {
		t := out[d.ConceptID]
		switch d.TypeID {
		case domain.FSNTypeID:
			t.fsn = d.Term
		case domain.SynonymTypeID:
			if t.pt == "" {
				t.pt = d.Term
			}
		}
		out[d.ConceptID] = t
	}
	return out, nil
}
