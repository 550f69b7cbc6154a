package rf2

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/logger"
	"github.com/ontocore/ontocore-server/internal/patcher"
	"github.com/ontocore/ontocore-server/internal/persist"
	"github.com/ontocore/ontocore-server/internal/rf2/reader"
)

var effectiveDatePattern = regexp.MustCompile(`^\d{8}$`)

// parseEffectiveTime converts an RF2 effectiveTime cell: "" → nil,
// anything not matching YYYYMMDD → nil, else the parsed integer (§6,
// §8 round-trip property).
func parseEffectiveTime(s string) *int {
	if s == "" || !effectiveDatePattern.MatchString(s) {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseActive(s string) bool { return s == "1" }

// maxEffectiveTimeCollector is the monotonically increasing observer
// over every effectiveTime seen during ingest (§4.5).
type maxEffectiveTimeCollector struct {
	mu  sync.Mutex
	max *int
}

func (c *maxEffectiveTimeCollector) Add(t *int) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.max == nil || *t > *c.max {
		v := *t
		c.max = &v
	}
}

func (c *maxEffectiveTimeCollector) Max() *int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max
}

// Store is the narrow slice of docstore the factory needs: generic
// batch-save plus the patcher's existing-version lookups. Every Save*
// method stamps entities into commit's branch/timepoint, rewriting in
// place any row this same commit already wrote (§3 "no two versions
// of a component coexist within one commit").
type Store interface {
	SaveConcepts(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Concept) error
	SaveDescriptions(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Description) error
	SaveRelationships(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Relationship) error
	SaveIdentifiers(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Identifier) error
	SaveMembers(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.ReferenceSetMember) error

	ExistingAtOrAfter(dbc dbctx.Context, table string, ids []string, criteria branchstore.BranchCriteria, effectiveTime int, strictlyAfter bool) (map[string]bool, error)
	LastReleasedConcepts(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Concept, error)
	LastReleasedDescriptions(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Description, error)
	LastReleasedRelationships(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Relationship, error)
	LastReleasedIdentifiers(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Identifier, error)
	LastReleasedMembers(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.ReferenceSetMember, error)
}

// conceptStoreAdapter/descriptionStoreAdapter/... adapt Store's
// table-generic ExistingAtOrAfter + the per-kind LastReleased method
// to patcher.Store[E]'s shape.
type conceptStoreAdapter struct {
	store    Store
	criteria branchstore.BranchCriteria
}

func (a conceptStoreAdapter) ExistingAtOrAfter(dbc dbctx.Context, ids []string, effectiveTime int, strictlyAfter bool) (map[string]bool, error) {
	return a.store.ExistingAtOrAfter(dbc, "concept", ids, a.criteria, effectiveTime, strictlyAfter)
}
func (a conceptStoreAdapter) LastReleased(dbc dbctx.Context, ids []string) (map[string]*domain.Concept, error) {
	return a.store.LastReleasedConcepts(dbc, ids, a.criteria)
}

type descriptionStoreAdapter struct {
	store    Store
	criteria branchstore.BranchCriteria
}

func (a descriptionStoreAdapter) ExistingAtOrAfter(dbc dbctx.Context, ids []string, effectiveTime int, strictlyAfter bool) (map[string]bool, error) {
	return a.store.ExistingAtOrAfter(dbc, "description", ids, a.criteria, effectiveTime, strictlyAfter)
}
func (a descriptionStoreAdapter) LastReleased(dbc dbctx.Context, ids []string) (map[string]*domain.Description, error) {
	return a.store.LastReleasedDescriptions(dbc, ids, a.criteria)
}

type relationshipStoreAdapter struct {
	store    Store
	criteria branchstore.BranchCriteria
}

func (a relationshipStoreAdapter) ExistingAtOrAfter(dbc dbctx.Context, ids []string, effectiveTime int, strictlyAfter bool) (map[string]bool, error) {
	return a.store.ExistingAtOrAfter(dbc, "relationship", ids, a.criteria, effectiveTime, strictlyAfter)
}
func (a relationshipStoreAdapter) LastReleased(dbc dbctx.Context, ids []string) (map[string]*domain.Relationship, error) {
	return a.store.LastReleasedRelationships(dbc, ids, a.criteria)
}

type identifierStoreAdapter struct {
	store    Store
	criteria branchstore.BranchCriteria
}

func (a identifierStoreAdapter) ExistingAtOrAfter(dbc dbctx.Context, ids []string, effectiveTime int, strictlyAfter bool) (map[string]bool, error) {
	return a.store.ExistingAtOrAfter(dbc, "identifier", ids, a.criteria, effectiveTime, strictlyAfter)
}
func (a identifierStoreAdapter) LastReleased(dbc dbctx.Context, ids []string) (map[string]*domain.Identifier, error) {
	return a.store.LastReleasedIdentifiers(dbc, ids, a.criteria)
}

type memberStoreAdapter struct {
	store    Store
	criteria branchstore.BranchCriteria
}

func (a memberStoreAdapter) ExistingAtOrAfter(dbc dbctx.Context, ids []string, effectiveTime int, strictlyAfter bool) (map[string]bool, error) {
	return a.store.ExistingAtOrAfter(dbc, "reference_set_member", ids, a.criteria, effectiveTime, strictlyAfter)
}
func (a memberStoreAdapter) LastReleased(dbc dbctx.Context, ids []string) (map[string]*domain.ReferenceSetMember, error) {
	return a.store.LastReleasedMembers(dbc, ids, a.criteria)
}

// ComponentFactory implements reader.Callbacks, converting RF2 rows
// into domain entities and routing them through the patcher into the
// persist buffers (§4.5 step 3, grounded on ImportComponentFactoryImpl).
type ComponentFactory struct {
	dbc    dbctx.Context
	store  Store
	commit *branchstore.Commit
	log    *logger.Logger

	patchCfg patcher.Config
	criteria branchstore.BranchCriteria

	moduleFilter *moduleEffectiveTimeFilter

	conceptBuf      *persist.Buffer[*domain.Concept]
	descriptionBuf  *persist.Buffer[*domain.Description]
	relationshipBuf *persist.Buffer[*domain.Relationship]
	identifierBuf   *persist.Buffer[*domain.Identifier]
	memberBuf       *persist.Buffer[*domain.ReferenceSetMember]

	latch   *persist.CoreLatch
	maxTime maxEffectiveTimeCollector

	counters map[string]*patcher.Counters

	err error
}

// NewComponentFactory wires up a factory for one open commit. patchCfg
// carries the per-import-type patcher toggles (§4.5 step 2); criteria
// must be branchCriteriaBeforeOpenCommit for the commit being built.
func NewComponentFactory(dbc dbctx.Context, store Store, commit *branchstore.Commit, baseLog *logger.Logger, patchCfg patcher.Config, criteria branchstore.BranchCriteria, moduleFilter *moduleEffectiveTimeFilter) *ComponentFactory {
	f := &ComponentFactory{
		dbc:          dbc,
		store:        store,
		commit:       commit,
		log:          baseLog.With("component", "rf2.ComponentFactory"),
		patchCfg:     patchCfg,
		criteria:     criteria,
		moduleFilter: moduleFilter,
		latch:        &persist.CoreLatch{},
		counters: map[string]*patcher.Counters{
			"concept": {}, "description": {}, "relationship": {}, "identifier": {}, "reference_set_member": {},
		},
	}

	f.conceptBuf = persist.NewBuffer("concept", f.persistConcepts, f.log)
	f.descriptionBuf = persist.NewBuffer("description", f.persistDescriptions, f.log)
	f.relationshipBuf = persist.NewBuffer("relationship", f.persistRelationships, f.log)
	f.identifierBuf = persist.NewBuffer("identifier", f.persistIdentifiers, f.log)
	f.memberBuf = persist.NewBuffer("reference_set_member", f.persistMembers, f.log)
	return f
}

func (f *ComponentFactory) coreBuffers() []persist.Flusher {
	return []persist.Flusher{f.conceptBuf, f.descriptionBuf, f.relationshipBuf}
}

func (f *ComponentFactory) dependentBuffers() []persist.Flusher {
	return []persist.Flusher{f.identifierBuf, f.memberBuf}
}

// FlushAll flushes every buffer at import completion (§4.3, §4.5 step 4).
func (f *ComponentFactory) FlushAll() error {
	return persist.FlushAll(f.dbc, f.latch, f.coreBuffers(), f.dependentBuffers())
}

func (f *ComponentFactory) MaxEffectiveTime() *int { return f.maxTime.Max() }

func (f *ComponentFactory) Err() error { return f.err }

func (f *ComponentFactory) setErr(err error) {
	if f.err == nil {
		f.err = err
	}
}

// effectivePatchConfig suppresses the patcher while the snapshot
// module-effective-time filter is active, per §4.4: "the archive
// reader has already dropped stale rows."
func (f *ComponentFactory) effectivePatchConfig() patcher.Config {
	cfg := f.patchCfg
	if f.moduleFilter != nil && f.moduleFilter.Enabled() {
		cfg.PatchReleaseVersion = patcher.PatchReleaseVersionDisabled
	}
	return cfg
}

func (f *ComponentFactory) NewConceptState(id, effectiveTime, active, moduleID, definitionStatusID string) {
	et := parseEffectiveTime(effectiveTime)
	f.maxTime.Add(et)
	c := &domain.Concept{
		Component:          domain.Component{ID: id, EffectiveTime: et, Active: parseActive(active), ModuleID: moduleID, Changed: true},
		DefinitionStatusID: definitionStatusID,
	}
	if et != nil {
		c.Released = true
		c.ReleasedEffectiveTime = et
	}
	if err := f.conceptBuf.Save(f.dbc, c); err != nil {
		f.setErr(err)
	}
}

func (f *ComponentFactory) NewDescriptionState(id, effectiveTime, active, moduleID, conceptID, languageCode, typeID, term, caseSignificanceID string) {
	et := parseEffectiveTime(effectiveTime)
	f.maxTime.Add(et)
	d := &domain.Description{
		Component:          domain.Component{ID: id, EffectiveTime: et, Active: parseActive(active), ModuleID: moduleID, Changed: true},
		ConceptID:          conceptID,
		LanguageCode:       languageCode,
		TypeID:             typeID,
		Term:               term,
		CaseSignificanceID: caseSignificanceID,
	}
	if et != nil {
		d.Released = true
		d.ReleasedEffectiveTime = et
	}
	if err := f.descriptionBuf.Save(f.dbc, d); err != nil {
		f.setErr(err)
	}
}

func (f *ComponentFactory) newRelationship(id, effectiveTime, active, moduleID, sourceID, destinationID, value, group, typeID, characteristicTypeID, modifierID string) *domain.Relationship {
	et := parseEffectiveTime(effectiveTime)
	f.maxTime.Add(et)
	groupN, _ := strconv.Atoi(group)
	// RF2 rows carry the characteristic type as a concept id.
	charType := domain.CharacteristicType(characteristicTypeID)
	switch characteristicTypeID {
	case domain.StatedRelationshipID:
		charType = domain.CharacteristicStated
	case domain.InferredRelationshipID:
		charType = domain.CharacteristicInferred
	}
	r := &domain.Relationship{
		Component:            domain.Component{ID: id, EffectiveTime: et, Active: parseActive(active), ModuleID: moduleID, Changed: true},
		SourceID:             sourceID,
		DestinationID:        destinationID,
		Value:                value,
		RelationshipGroup:    groupN,
		TypeID:               typeID,
		CharacteristicTypeID: charType,
		ModifierID:           modifierID,
	}
	if et != nil {
		r.Released = true
		r.ReleasedEffectiveTime = et
	}
	return r
}

func (f *ComponentFactory) NewRelationshipState(id, effectiveTime, active, moduleID, sourceID, destinationID, group, typeID, characteristicTypeID, modifierID string) {
	r := f.newRelationship(id, effectiveTime, active, moduleID, sourceID, destinationID, "", group, typeID, characteristicTypeID, modifierID)

	// A small, unexplained allow-list of stated-relationship ids also
	// appear in the inferred file; drop them to avoid double ingestion.
	if r.CharacteristicTypeID == domain.CharacteristicStated && domain.IsDroppedStatedRelationship(id) {
		return
	}
	if err := f.relationshipBuf.Save(f.dbc, r); err != nil {
		f.setErr(err)
	}
}

func (f *ComponentFactory) NewConcreteRelationshipState(id, effectiveTime, active, moduleID, sourceID, value, group, typeID, characteristicTypeID, modifierID string) {
	r := f.newRelationship(id, effectiveTime, active, moduleID, sourceID, "", value, group, typeID, characteristicTypeID, modifierID)
	if err := f.relationshipBuf.Save(f.dbc, r); err != nil {
		f.setErr(err)
	}
}

func (f *ComponentFactory) NewIdentifierState(alternateIdentifier, effectiveTime, active, moduleID, identifierSchemeID, referencedComponentID string) {
	et := parseEffectiveTime(effectiveTime)
	f.maxTime.Add(et)
	id := &domain.Identifier{
		Component:             domain.Component{ID: alternateIdentifier, EffectiveTime: et, Active: parseActive(active), ModuleID: moduleID, Changed: true},
		AlternateIdentifier:   alternateIdentifier,
		IdentifierSchemeID:    identifierSchemeID,
		ReferencedComponentID: referencedComponentID,
	}
	if et != nil {
		id.Released = true
		id.ReleasedEffectiveTime = et
	}
	if err := f.identifierBuf.Save(f.dbc, id); err != nil {
		f.setErr(err)
	}
}

func (f *ComponentFactory) NewReferenceSetMemberState(fieldNames []string, id, effectiveTime, active, moduleID, refsetID, referencedComponentID string, otherValues []string) {
	const memberAdditionalFieldOffset = 6
	et := parseEffectiveTime(effectiveTime)
	f.maxTime.Add(et)
	m := &domain.ReferenceSetMember{
		Component:             domain.Component{ID: id, EffectiveTime: et, Active: parseActive(active), ModuleID: moduleID, Changed: true},
		RefsetID:              refsetID,
		ReferencedComponentID: referencedComponentID,
	}
	for i := memberAdditionalFieldOffset; i < len(fieldNames); i++ {
		idx := i - memberAdditionalFieldOffset
		if idx < len(otherValues) {
			m.SetField(fieldNames[i], otherValues[idx])
		} else {
			m.SetField(fieldNames[i], "")
		}
	}
	if et != nil {
		m.Released = true
		m.ReleasedEffectiveTime = et
	}
	if err := f.memberBuf.Save(f.dbc, m); err != nil {
		f.setErr(err)
	}
}

func (f *ComponentFactory) persistConcepts(dbc dbctx.Context, batch []*domain.Concept) error {
	kept, err := patcher.Patch(dbc, conceptStoreAdapter{f.store, f.criteria}, f.effectivePatchConfig(), batch, f.counters["concept"])
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	if len(kept) == 0 {
		return nil
	}
	return f.store.SaveConcepts(dbc, f.commit, kept)
}

func (f *ComponentFactory) persistDescriptions(dbc dbctx.Context, batch []*domain.Description) error {
	kept, err := patcher.Patch(dbc, descriptionStoreAdapter{f.store, f.criteria}, f.effectivePatchConfig(), batch, f.counters["description"])
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	if len(kept) == 0 {
		return nil
	}
	return f.store.SaveDescriptions(dbc, f.commit, kept)
}

func (f *ComponentFactory) persistRelationships(dbc dbctx.Context, batch []*domain.Relationship) error {
	kept, err := patcher.Patch(dbc, relationshipStoreAdapter{f.store, f.criteria}, f.effectivePatchConfig(), batch, f.counters["relationship"])
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	if len(kept) == 0 {
		return nil
	}
	return f.store.SaveRelationships(dbc, f.commit, kept)
}

func (f *ComponentFactory) persistIdentifiers(dbc dbctx.Context, batch []*domain.Identifier) error {
	if !f.latch.Flushed() {
		for _, core := range f.coreBuffers() {
			if err := core.Flush(dbc); err != nil {
				return err
			}
		}
		f.latch.MarkFlushed()
	}
	kept, err := patcher.Patch(dbc, identifierStoreAdapter{f.store, f.criteria}, f.effectivePatchConfig(), batch, f.counters["identifier"])
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	if len(kept) == 0 {
		return nil
	}
	return f.store.SaveIdentifiers(dbc, f.commit, kept)
}

func (f *ComponentFactory) persistMembers(dbc dbctx.Context, batch []*domain.ReferenceSetMember) error {
	if !f.latch.Flushed() {
		for _, core := range f.coreBuffers() {
			if err := core.Flush(dbc); err != nil {
				return err
			}
		}
		f.latch.MarkFlushed()
	}
	kept, err := patcher.Patch(dbc, memberStoreAdapter{f.store, f.criteria}, f.effectivePatchConfig(), batch, f.counters["reference_set_member"])
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	if len(kept) == 0 {
		return nil
	}
	return f.store.SaveMembers(dbc, f.commit, kept)
}

var _ reader.Callbacks = (*ComponentFactory)(nil)
