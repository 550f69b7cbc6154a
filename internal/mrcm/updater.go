package mrcm

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/docstore"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/logger"
)

// Updater is the commit hook implementing §4.7's seven-step algorithm:
// detect MRCM refset changes, regenerate derived rule text for the
// whole active rulebook, and write the result back without minting a
// second version of a member this commit already authored.
type Updater struct {
	substrate branchstore.Substrate
	store     *docstore.Store
	eval      Evaluator
	generator RuleGenerator
	log       *logger.Logger
}

func NewUpdater(substrate branchstore.Substrate, store *docstore.Store, eval Evaluator, generator RuleGenerator, baseLog *logger.Logger) *Updater {
	return &Updater{
		substrate: substrate,
		store:     store,
		eval:      eval,
		generator: generator,
		log:       baseLog.With("component", "mrcm.Updater"),
	}
}

// Run drives the full algorithm for one just-written commit. Unlike
// the integrity hook, a failure here is fatal: the caller must let the
// error propagate and roll the commit back rather than swallow it.
func (u *Updater) Run(dbc dbctx.Context, commit *branchstore.Commit) error {
	if commit.Kind != branchstore.CommitKindContent && commit.Kind != branchstore.CommitKindRebase {
		return nil
	}
	branch, err := u.substrate.GetBranch(dbc, commit.Path)
	if err != nil {
		return err
	}
	if v, ok := branch.Metadata.GetNested(branchstore.SectionInternal, branchstore.KeyImportingCodeSystemVersion); ok && v == "true" {
		return nil
	}

	openCriteria := branchstore.BranchCriteria{OpenCommitID: commit.ID.String()}
	changed, err := docstore.Find[*domain.ReferenceSetMember](dbc, u.store.DB(), openCriteria, docstore.Bool(
		[]docstore.Query{
			docstore.Term("change_commit_id", commit.ID.String()),
			docstore.Terms("refset_id", toInterfaceSlice(domain.MRCMRefsetIDs)),
		},
		nil, nil,
	))
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	alreadyInCommit := make(map[string]struct{}, len(changed))
	for _, m := range changed {
		alreadyInCommit[m.ID] = struct{}{}
	}

	criteria, err := u.substrate.BranchCriteriaIncludingOpenCommit(dbc, commit.Path, commit.ID)
	if err != nil {
		return err
	}
	rulebook, rows, err := loadRulebook(dbc, u.store, criteria)
	if err != nil {
		return err
	}

	shortTerms, err := u.fetchShortTerms(dbc, criteria, rulebook)
	if err != nil {
		return err
	}

	dataAttributes, err := u.eval.Evaluate(dbc.Ctx, commit.Path, true, dataAttributesExpression())
	if err != nil {
		return err
	}

	generated, err := u.generator.Generate(rulebook, dataAttributes, shortTerms)
	if err != nil {
		return err
	}

	defaultModuleID, hasDefaultModule := branch.Metadata.GetFlat(branchstore.KeyDefaultModuleID)

	rewrites := make([]docstore.FieldUpdate, 0)
	var toSave []*domain.ReferenceSetMember

	apply := func(memberID string, fields map[string]string) {
		if len(fields) == 0 {
			return
		}
		row, ok := rows[memberID]
		if !ok {
			return
		}
		newHash := contentHash(fields)
		effectiveTime := row.EffectiveTime
		if newHash != row.ReleaseHash {
			effectiveTime = nil
		}
		for name, value := range fields {
			row.SetField(name, value)
		}
		row.EffectiveTime = effectiveTime
		var moduleIDPtr *string
		if hasDefaultModule {
			row.ModuleID = defaultModuleID
			moduleIDPtr = &defaultModuleID
		}

		if _, already := alreadyInCommit[memberID]; already {
			rewrites = append(rewrites, docstore.FieldUpdate{
				MemberID:         memberID,
				Fields:           fields,
				EffectiveTimeSet: true,
				EffectiveTime:    effectiveTime,
				ModuleID:         moduleIDPtr,
			})
			return
		}
		row.Changed = true
		toSave = append(toSave, row)
	}

	for _, d := range rulebook.Domains {
		fields := map[string]string{}
		if v, ok := generated.DomainTemplatesForPrecoordination[d.MemberID]; ok {
			fields[fieldDomainTemplateForPrecoordination] = v
		}
		if v, ok := generated.DomainTemplatesForPostcoordination[d.MemberID]; ok {
			fields[fieldDomainTemplateForPostcoordination] = v
		}
		apply(d.MemberID, fields)
	}
	for _, ad := range rulebook.AttributeDomains {
		fields := map[string]string{}
		if v, ok := generated.AttributeRules[ad.MemberID]; ok {
			fields[fieldAttributeRule] = v
		}
		apply(ad.MemberID, fields)
	}
	for _, ar := range rulebook.AttributeRanges {
		fields := map[string]string{}
		if v, ok := generated.RangeConstraints[ar.MemberID]; ok {
			fields[fieldRangeConstraint] = v
		}
		apply(ar.MemberID, fields)
	}

	if len(rewrites) > 0 {
		if err := u.store.BulkScriptedUpdate(dbc, domain.ReferenceSetMember{}.TableName(), rewrites); err != nil {
			return err
		}
	}
	if len(toSave) > 0 {
		if err := docstore.SaveVersioned(dbc, u.store.DB(), commit, toSave); err != nil {
			return err
		}
	}
	return nil
}

// fetchShortTerms resolves §4.7 step 3: the FSN for every domain
// concept id, a best-effort preferred term (Synonym) for every
// attribute id referenced from either attribute refset.
func (u *Updater) fetchShortTerms(dbc dbctx.Context, criteria branchstore.BranchCriteria, rb Rulebook) (map[string]ShortTerm, error) {
	domainIDs := make([]string, 0, len(rb.Domains))
	for _, d := range rb.Domains {
		domainIDs = append(domainIDs, d.ConceptID)
	}
	seen := map[string]struct{}{}
	attributeIDs := make([]string, 0, len(rb.AttributeDomains)+len(rb.AttributeRanges))
	for _, ad := range rb.AttributeDomains {
		if _, ok := seen[ad.AttributeID]; !ok {
			seen[ad.AttributeID] = struct{}{}
			attributeIDs = append(attributeIDs, ad.AttributeID)
		}
	}
	for _, ar := range rb.AttributeRanges {
		if _, ok := seen[ar.AttributeID]; !ok {
			seen[ar.AttributeID] = struct{}{}
			attributeIDs = append(attributeIDs, ar.AttributeID)
		}
	}

	out := map[string]ShortTerm{}
	if len(domainIDs) > 0 {
		descs, err := docstore.Find[*domain.Description](dbc, u.store.DB(), criteria, docstore.Bool(
			[]docstore.Query{
				docstore.Term("active", true),
				docstore.Term("type_id", domain.FSNTypeID),
				docstore.Terms("concept_id", toInterfaceSlice(domainIDs)),
			}, nil, nil,
		))
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			out[d.ConceptID] = ShortTerm{ConceptID: d.ConceptID, Term: d.Term}
		}
	}
	if len(attributeIDs) > 0 {
		descs, err := docstore.Find[*domain.Description](dbc, u.store.DB(), criteria, docstore.Bool(
			[]docstore.Query{
				docstore.Term("active", true),
				docstore.Term("type_id", domain.SynonymTypeID),
				docstore.Terms("concept_id", toInterfaceSlice(attributeIDs)),
			}, nil, nil,
		))
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			if _, exists := out[d.ConceptID]; !exists {
				out[d.ConceptID] = ShortTerm{ConceptID: d.ConceptID, Term: d.Term}
			}
		}
	}
	return out, nil
}

// contentHash gives a stable digest of a member's regenerated fields,
// compared against ReleaseHash to decide whether this commit's
// regeneration actually diverges from the last release (§4.7 step 6).
func contentHash(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(fields[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
