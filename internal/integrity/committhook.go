package integrity

import (
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
)

// PreCommitCompletion is §4.6.5: the commit-time hook clearing a
// branch's stale integrityIssue flag once whatever caused it is
// resolved. It never returns an error to its caller — a failed
// integrity check here must not abort the commit being completed,
// only leave the flag in place for a later retry.
func (e *Engine) PreCommitCompletion(dbc dbctx.Context, commit *branchstore.Commit) {
	branch, err := e.substrate.GetBranch(dbc, commit.Path)
	if err != nil {
		e.log.Error("integrity hook: failed to load branch", "branch", commit.Path, "err", err)
		return
	}
	flag, ok := branch.Metadata.GetNested(branchstore.SectionInternal, branchstore.KeyIntegrityIssue)
	if !ok || flag != "true" {
		return
	}

	owner, found, err := e.codeSystems.OwningBranch(dbc, commit.Path)
	if err != nil {
		e.log.Error("integrity hook: failed to locate owning code system", "branch", commit.Path, "err", err)
		return
	}
	if !found {
		return
	}

	if commit.Path == owner {
		report, err := e.checkIncremental(dbc, commit.Path, &commit.ID)
		if err != nil {
			e.log.Error("integrity hook: incremental check failed, leaving flag in place", "branch", commit.Path, "err", err)
			return
		}
		if !report.Empty() {
			return
		}
		if _, err := e.substrate.UpdateMetadata(dbc, commit.Path, func(m branchstore.Metadata) branchstore.Metadata {
			return m.DeleteNested(branchstore.SectionInternal, branchstore.KeyIntegrityIssue)
		}); err != nil {
			e.log.Error("integrity hook: failed to clear integrityIssue flag", "branch", commit.Path, "err", err)
		}
		return
	}

	// commit.Path is a task branch under the owning code system.
	// VerifyFix clears the flag itself when its re-check of the parent's
	// findings comes back empty, but not when it falls back to the task
	// branch's own incremental report; any empty report clears it here.
	report, err := e.VerifyFix(dbc, commit.Path, owner)
	if err != nil {
		e.log.Error("integrity hook: fix verification failed, leaving flag in place", "branch", commit.Path, "err", err)
		return
	}
	if !report.Empty() {
		return
	}
	if _, err := e.substrate.UpdateMetadata(dbc, commit.Path, func(m branchstore.Metadata) branchstore.Metadata {
		return m.DeleteNested(branchstore.SectionInternal, branchstore.KeyIntegrityIssue)
	}); err != nil {
		e.log.Error("integrity hook: failed to clear integrityIssue flag", "branch", commit.Path, "err", err)
	}
}
