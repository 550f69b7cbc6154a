package rf2

import (
	"context"

	"github.com/google/uuid"

	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/rf2/reader"
)

// fullImportDriver detects release boundaries and rolls the commit:
// whenever a row with a new, different effectiveTime is seen, the
// current commit is flushed, marked successful and closed, and a
// fresh one opened for the branch — so each historical release is
// committed atomically and timestamped independently by the substrate
// (§4.5.1).
type fullImportDriver struct {
	coordinator *Coordinator
	ctx         context.Context
	cfg         Config

	commitID  uuid.UUID
	commit    *branchstore.Commit
	factory   *ComponentFactory
	currentET *int
	maxET     *int
	err       error
}

func (c *Coordinator) newFullImportDriver(ctx context.Context, cfg Config) (*fullImportDriver, error) {
	d := &fullImportDriver{coordinator: c, ctx: ctx, cfg: cfg}
	if err := d.openCommit(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *fullImportDriver) openCommit() error {
	dbc := dbctx.New(d.ctx, nil)
	commit, err := d.coordinator.substrate.OpenCommit(dbc, d.cfg.BranchPath, branchMetadataReason())
	if err != nil {
		return err
	}
	criteria, err := d.coordinator.substrate.BranchCriteriaBeforeOpenCommit(dbc, commit.ID)
	if err != nil {
		d.coordinator.fail(dbc, commit.ID)
		return err
	}
	d.commitID = commit.ID
	d.commit = commit
	d.factory = NewComponentFactory(dbc, d.coordinator.store, commit, d.coordinator.log, d.coordinator.patchConfigFor(d.cfg), criteria, nil)
	return nil
}

func (d *fullImportDriver) onRowEffectiveTime(et *int) {
	if et == nil || d.err != nil {
		return
	}
	if d.maxET == nil || *et > *d.maxET {
		v := *et
		d.maxET = &v
	}
	if d.currentET == nil {
		d.currentET = et
		return
	}
	if *et == *d.currentET {
		return
	}
	d.rollCommit()
	d.currentET = et
}

func (d *fullImportDriver) rollCommit() {
	dbc := dbctx.New(d.ctx, nil)
	if err := d.factory.FlushAll(); err != nil {
		d.err = err
		return
	}
	if err := d.factory.Err(); err != nil {
		d.err = err
		return
	}
	if err := d.coordinator.runCommitHooks(dbc, d.commit); err != nil {
		d.err = err
		return
	}
	d.coordinator.markSuccessAndClose(dbc, d.commitID)
	if err := d.openCommit(); err != nil {
		d.err = err
	}
}

func (d *fullImportDriver) finish() error {
	if d.err != nil {
		d.coordinator.fail(dbctx.New(d.ctx, nil), d.commitID)
		return d.err
	}
	if err := d.factory.FlushAll(); err != nil {
		d.coordinator.fail(dbctx.New(d.ctx, nil), d.commitID)
		return err
	}
	if err := d.factory.Err(); err != nil {
		d.coordinator.fail(dbctx.New(d.ctx, nil), d.commitID)
		return err
	}
	dbc := dbctx.New(d.ctx, nil)
	if err := d.coordinator.runCommitHooks(dbc, d.commit); err != nil {
		d.coordinator.fail(dbc, d.commitID)
		return err
	}
	d.coordinator.markSuccessAndClose(dbc, d.commitID)
	return nil
}

// runFullImportImpl drives files through a driver that rolls the open
// commit at each effective-time boundary (§4.5.1): a FULL import
// contains every historical version of every component, and each
// version must land in its own atomically-timestamped commit. A FULL
// import is only permitted on an empty root branch (checked at job
// creation by ValidateJob).
func (c *Coordinator) runFullImportImpl(ctx context.Context, job *Job, files []ArchiveFile) error {
	driver, err := c.newFullImportDriver(ctx, job.Config)
	if err != nil {
		return err
	}
	wrapped := fullImportCallbacks{driver: driver}
	for _, file := range files {
		if err := c.lineSource.ReadFile(file.Reader, file.Kind, wrapped); err != nil {
			c.fail(dbctx.New(ctx, nil), driver.commitID)
			return err
		}
		if driver.err != nil {
			c.fail(dbctx.New(ctx, nil), driver.commitID)
			return driver.err
		}
	}
	if err := driver.finish(); err != nil {
		return err
	}
	job.MaxEffectiveTime = driver.maxET
	return nil
}

// fullImportCallbacks intercepts every callback to notice
// effectiveTime boundaries before delegating to the driver's current
// factory (which may change mid-stream as commits roll over).
type fullImportCallbacks struct {
	driver *fullImportDriver
}

func (w fullImportCallbacks) NewConceptState(id, effectiveTime, active, moduleID, definitionStatusID string) {
	w.driver.onRowEffectiveTime(parseEffectiveTime(effectiveTime))
	w.driver.factory.NewConceptState(id, effectiveTime, active, moduleID, definitionStatusID)
}

func (w fullImportCallbacks) NewDescriptionState(id, effectiveTime, active, moduleID, conceptID, languageCode, typeID, term, caseSignificanceID string) {
	w.driver.onRowEffectiveTime(parseEffectiveTime(effectiveTime))
	w.driver.factory.NewDescriptionState(id, effectiveTime, active, moduleID, conceptID, languageCode, typeID, term, caseSignificanceID)
}

func (w fullImportCallbacks) NewRelationshipState(id, effectiveTime, active, moduleID, sourceID, destinationID, group, typeID, characteristicTypeID, modifierID string) {
	w.driver.onRowEffectiveTime(parseEffectiveTime(effectiveTime))
	w.driver.factory.NewRelationshipState(id, effectiveTime, active, moduleID, sourceID, destinationID, group, typeID, characteristicTypeID, modifierID)
}

func (w fullImportCallbacks) NewConcreteRelationshipState(id, effectiveTime, active, moduleID, sourceID, value, group, typeID, characteristicTypeID, modifierID string) {
	w.driver.onRowEffectiveTime(parseEffectiveTime(effectiveTime))
	w.driver.factory.NewConcreteRelationshipState(id, effectiveTime, active, moduleID, sourceID, value, group, typeID, characteristicTypeID, modifierID)
}

func (w fullImportCallbacks) NewIdentifierState(alternateIdentifier, effectiveTime, active, moduleID, identifierSchemeID, referencedComponentID string) {
	w.driver.onRowEffectiveTime(parseEffectiveTime(effectiveTime))
	w.driver.factory.NewIdentifierState(alternateIdentifier, effectiveTime, active, moduleID, identifierSchemeID, referencedComponentID)
}

func (w fullImportCallbacks) NewReferenceSetMemberState(fieldNames []string, id, effectiveTime, active, moduleID, refsetID, referencedComponentID string, otherValues []string) {
	w.driver.onRowEffectiveTime(parseEffectiveTime(effectiveTime))
	w.driver.factory.NewReferenceSetMemberState(fieldNames, id, effectiveTime, active, moduleID, refsetID, referencedComponentID, otherValues)
}

var _ reader.Callbacks = fullImportCallbacks{}
