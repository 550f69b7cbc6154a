package rf2

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/logger"
	"github.com/ontocore/ontocore-server/internal/patcher"
	"github.com/ontocore/ontocore-server/internal/rf2/reader"
)

// CodeSystems is the narrow slice of code-system lookups the
// coordinator needs for its preconditions and post-import version
// creation (§4.5 step 1, step 4).
type CodeSystems interface {
	ExistsOnBranch(dbc dbctx.Context, branchPath string) (bool, error)
	CreateVersionIfFound(dbc dbctx.Context, branchPath string, effectiveTime int, internalRelease bool) error
}

// ArchiveFile is one file from an already-materialized RF2 release,
// classified by kind; archive unpacking itself is out of scope (§1).
type ArchiveFile struct {
	Kind   reader.FileKind
	Reader io.Reader
}

// IntegrityHook is the reference-integrity engine's commit-time check
// (§4.6.5). It never fails the commit: any error is its own concern
// to log.
type IntegrityHook interface {
	PreCommitCompletion(dbc dbctx.Context, commit *branchstore.Commit)
}

// MRCMHook is the MRCM auto-maintenance commit hook (§4.7). Unlike
// IntegrityHook, a failure here is fatal and rolls the commit back.
type MRCMHook interface {
	Run(dbc dbctx.Context, commit *branchstore.Commit) error
}

// Coordinator runs the RF2 ingestion pipeline end to end (§4.5).
type Coordinator struct {
	substrate     branchstore.Substrate
	store         Store
	codeSystems   CodeSystems
	lineSource    reader.LineSource
	integrityHook IntegrityHook
	mrcmHook      MRCMHook
	log           *logger.Logger
}

func NewCoordinator(substrate branchstore.Substrate, store Store, codeSystems CodeSystems, lineSource reader.LineSource, baseLog *logger.Logger) *Coordinator {
	return &Coordinator{
		substrate:   substrate,
		store:       store,
		codeSystems: codeSystems,
		lineSource:  lineSource,
		log:         baseLog.With("component", "rf2.Coordinator"),
	}
}

// WithCommitHooks attaches the reference-integrity and MRCM
// auto-maintenance commit hooks, run on every commit this coordinator
// completes (§4.5 step 4.5, §4.6.5, §4.7). Both are optional: a nil
// hook is simply skipped, which keeps unit tests that construct a
// Coordinator directly free of a semantic-index dependency.
func (c *Coordinator) WithCommitHooks(integrityHook IntegrityHook, mrcmHook MRCMHook) *Coordinator {
	c.integrityHook = integrityHook
	c.mrcmHook = mrcmHook
	return c
}

// runCommitHooks runs the MRCM hook (fatal on error) then the
// integrity hook (never fatal), after a commit's writes are flushed
// but before it is marked successful.
func (c *Coordinator) runCommitHooks(dbc dbctx.Context, commit *branchstore.Commit) error {
	if c.mrcmHook != nil {
		if err := c.mrcmHook.Run(dbc, commit); err != nil {
			return err
		}
	}
	if c.integrityHook != nil {
		c.integrityHook.PreCommitCompletion(dbc, commit)
	}
	return nil
}

// ValidateJob runs §4.5's creation-time preconditions: branch exists;
// FULL requires an empty root branch; createCodeSystemVersion
// requires a CodeSystem on that path.
func (c *Coordinator) ValidateJob(ctx context.Context, cfg Config, hasExistingContent func(ctx context.Context, branchPath string) (bool, error)) error {
	dbc := dbctx.New(ctx, nil)
	if _, err := c.substrate.GetBranch(dbc, cfg.BranchPath); err != nil {
		return err
	}
	if cfg.Type == ImportFull {
		if !branchstore.IsRoot(cfg.BranchPath) {
			return apperr.NewValidation("branchPath", "FULL import is only implemented for the MAIN branch")
		}
		hasContent, err := hasExistingContent(ctx, cfg.BranchPath)
		if err != nil {
			return apperr.NewTransientStore(err)
		}
		if hasContent {
			return apperr.NewValidation("branchPath", "FULL import requires a branch with no existing content")
		}
	}
	if cfg.CreateCodeSystemVersion {
		exists, err := c.codeSystems.ExistsOnBranch(dbc, cfg.BranchPath)
		if err != nil {
			return apperr.NewTransientStore(err)
		}
		if !exists {
			return apperr.NewValidation("createCodeSystemVersion", "no CodeSystem exists on this branch path")
		}
	}
	return nil
}

// Run executes job end to end: writes import metadata, opens a
// commit, drives files through the matching factory, and finalises or
// rolls back (§4.5 steps 1-5).
func (c *Coordinator) Run(ctx context.Context, job *Job, files []ArchiveFile, moduleCutoffs map[string]int) error {
	job.Status = StatusRunning
	dbc := dbctx.New(ctx, nil)

	if err := c.setImportMetadata(dbc, job.Config); err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		return err
	}

	runErr := c.runImport(ctx, job, files, moduleCutoffs)

	if clearErr := c.clearImportMetadata(dbc, job.Config.BranchPath); clearErr != nil {
		c.log.Warn("failed to clear import metadata", "branch", job.Config.BranchPath, "error", clearErr)
	}

	if runErr != nil {
		job.Status = StatusFailed
		job.Error = runErr.Error()
		return runErr
	}
	job.Status = StatusCompleted
	return nil
}

func (c *Coordinator) setImportMetadata(dbc dbctx.Context, cfg Config) error {
	_, err := c.substrate.UpdateMetadata(dbc, cfg.BranchPath, func(m branchstore.Metadata) branchstore.Metadata {
		m = m.SetNested(branchstore.SectionInternal, branchstore.KeyImportType, string(cfg.Type))
		if cfg.Type == ImportFull || cfg.CreateCodeSystemVersion {
			m = m.SetNested(branchstore.SectionInternal, branchstore.KeyImportingCodeSystemVersion, "true")
		}
		return m
	})
	return err
}

func (c *Coordinator) clearImportMetadata(dbc dbctx.Context, branchPath string) error {
	_, err := c.substrate.UpdateMetadata(dbc, branchPath, func(m branchstore.Metadata) branchstore.Metadata {
		m = m.DeleteNested(branchstore.SectionInternal, branchstore.KeyImportType)
		m = m.DeleteNested(branchstore.SectionInternal, branchstore.KeyImportingCodeSystemVersion)
		return m
	})
	return err
}

func (c *Coordinator) patchConfigFor(cfg Config) patcher.Config {
	patchVersion := patcher.PatchReleaseVersionDisabled
	if cfg.PatchReleaseVersion != nil {
		patchVersion = *cfg.PatchReleaseVersion
	}
	switch cfg.Type {
	case ImportDelta:
		return patcher.Config{
			CopyReleaseFields:   !cfg.CreateCodeSystemVersion,
			PatchReleaseVersion: patchVersion,
		}
	case ImportSnapshot:
		return patcher.Config{
			CopyReleaseFields:   !cfg.CreateCodeSystemVersion,
			PatchReleaseVersion: patchVersion,
		}
	default: // FULL
		return patcher.Config{PatchReleaseVersion: patcher.PatchReleaseVersionDisabled}
	}
}

func (c *Coordinator) runImport(ctx context.Context, job *Job, files []ArchiveFile, moduleCutoffs map[string]int) error {
	cfg := job.Config

	// FULL imports manage their own sequence of commits, one per
	// release boundary (§4.5.1), so they never share the single
	// commit the DELTA/SNAPSHOT path below opens.
	if cfg.Type == ImportFull {
		return c.runFullImportImpl(ctx, job, files)
	}

	commit, err := c.substrate.OpenCommit(dbctx.New(ctx, nil), cfg.BranchPath, branchMetadataReason())
	if err != nil {
		return err
	}
	dbc := dbctx.New(ctx, nil)

	criteria, err := c.substrate.BranchCriteriaBeforeOpenCommit(dbc, commit.ID)
	if err != nil {
		_ = c.substrate.CloseCommit(dbc, commit.ID)
		return err
	}

	var moduleFilter *moduleEffectiveTimeFilter
	if cfg.Type == ImportSnapshot && len(moduleCutoffs) > 0 {
		moduleFilter = newModuleEffectiveTimeFilter(moduleCutoffs)
	}

	factory := NewComponentFactory(dbc, c.store, commit, c.log, c.patchConfigFor(cfg), criteria, moduleFilter)
	for _, file := range files {
		if err := c.lineSource.ReadFile(file.Reader, file.Kind, factory); err != nil {
			c.fail(dbc, commit.ID)
			return apperr.NewTransientStore(err)
		}
		if factory.Err() != nil {
			c.fail(dbc, commit.ID)
			return factory.Err()
		}
	}
	if err := factory.FlushAll(); err != nil {
		c.fail(dbc, commit.ID)
		return err
	}
	if err := c.runCommitHooks(dbc, commit); err != nil {
		c.fail(dbc, commit.ID)
		return err
	}

	c.markSuccessAndClose(dbc, commit.ID)
	return c.finishNonFull(ctx, job, factory.MaxEffectiveTime())
}

func (c *Coordinator) finishNonFull(ctx context.Context, job *Job, maxEffectiveTime *int) error {
	job.MaxEffectiveTime = maxEffectiveTime
	if job.Config.CreateCodeSystemVersion && job.Config.Type != ImportFull && maxEffectiveTime != nil {
		dbc := dbctx.New(ctx, nil)
		if err := c.codeSystems.CreateVersionIfFound(dbc, job.Config.BranchPath, *maxEffectiveTime, job.Config.InternalRelease); err != nil {
			return err
		}
	}
	return nil
}

// fail closes the commit without marking it successful, triggering
// rollback of every write tagged with it at the substrate layer
// (§4.5 step 5, §7 "LockContention"/"rollback" propagation policy).
func (c *Coordinator) fail(dbc dbctx.Context, commitID uuid.UUID) {
	if err := c.substrate.CloseCommit(dbc, commitID); err != nil {
		c.log.Warn("failed to close commit during rollback", "commit_id", commitID, "error", err)
	}
}

// branchMetadataReason is the lock metadata attached to every commit
// this coordinator opens, mirroring the teacher's practice of
// stamping a human-readable reason onto branch locks.
func branchMetadataReason() branchstore.Metadata {
	return branchstore.NewMetadata().SetFlat("reason", "Loading components from RF2 import.")
}

func (c *Coordinator) markSuccessAndClose(dbc dbctx.Context, commitID uuid.UUID) {
	if err := c.substrate.MarkSuccessful(dbc, commitID); err != nil {
		c.log.Error("failed to mark commit successful", "commit_id", commitID, "error", err)
		return
	}
	if err := c.substrate.CloseCommit(dbc, commitID); err != nil {
		c.log.Error("failed to close commit", "commit_id", commitID, "error", err)
	}
}
