// Package branchstore is the concrete Postgres/GORM backing for the
// branch/commit version-control substrate (§4.1): branch path
// hierarchy, commit lifecycle, and the branch-criteria predicates that
// other packages compile candidate rows against.
package branchstore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/logger"
)

type CommitState string

const (
	CommitOpen       CommitState = "OPEN"
	CommitSuccessful CommitState = "SUCCESSFUL"
	CommitClosed     CommitState = "CLOSED"
	CommitRolledBack CommitState = "ROLLED_BACK"
)

// Branch is one node in the branch path hierarchy. LockedCommitID
// implements the compare-and-swap lock consumed by OpenCommit: a
// commit holds the branch lock for its lifetime by occupying this
// column, released by CloseCommit.
type Branch struct {
	Path            string     `gorm:"primaryKey;column:path"`
	BaseTimestamp   int64      `gorm:"column:base_timestamp"`
	HeadTimestamp   int64      `gorm:"column:head_timestamp"`
	Metadata        Metadata   `gorm:"column:metadata;type:jsonb;serializer:json"`
	LockedCommitID  *uuid.UUID `gorm:"column:locked_commit_id"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (Branch) TableName() string { return "branch" }

// CommitKind distinguishes an ordinary content-writing commit from a
// rebase/promotion commit; the MRCM auto-maintenance hook only fires
// on these two kinds (§4.7 step 0).
type CommitKind string

const (
	CommitKindContent CommitKind = "CONTENT"
	CommitKindRebase  CommitKind = "REBASE"
)

// Commit is one entry in a branch's commit history.
type Commit struct {
	ID           uuid.UUID   `gorm:"primaryKey;column:id"`
	Path         string      `gorm:"column:path;index"`
	Timepoint    int64       `gorm:"column:timepoint;index"`
	Kind         CommitKind  `gorm:"column:kind"`
	LockMetadata Metadata    `gorm:"column:lock_metadata;type:jsonb;serializer:json"`
	State        CommitState `gorm:"column:state"`
	CreatedAt    time.Time   `gorm:"column:created_at"`
}

func (Commit) TableName() string { return "commit" }

// Substrate is the interface every consumer (persist buffers,
// integrity engine, MRCM updater) programs against; §4.1 names each of
// these operations.
type Substrate interface {
	OpenCommit(dbc dbctx.Context, branchPath string, lockMetadata Metadata) (*Commit, error)
	MarkSuccessful(dbc dbctx.Context, commitID uuid.UUID) error
	CloseCommit(dbc dbctx.Context, commitID uuid.UUID) error
	RollbackCommit(dbc dbctx.Context, commitID uuid.UUID) error

	GetBranch(dbc dbctx.Context, path string) (*Branch, error)
	CreateBranch(dbc dbctx.Context, path string, parentBase, parentHead int64) (*Branch, error)
	UpdateMetadata(dbc dbctx.Context, path string, mutate func(Metadata) Metadata) (*Branch, error)

	BranchCriteriaOn(dbc dbctx.Context, path string) (BranchCriteria, error)
	BranchCriteriaIncludingOpenCommit(dbc dbctx.Context, path string, commitID uuid.UUID) (BranchCriteria, error)
	BranchCriteriaUnpromotedChanges(dbc dbctx.Context, path string) (BranchCriteria, error)
	BranchCriteriaUnpromotedChangesAndDeletions(dbc dbctx.Context, path string) (BranchCriteria, error)
	BranchCriteriaBeforeOpenCommit(dbc dbctx.Context, commitID uuid.UUID) (BranchCriteria, error)
}

type gormSubstrate struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubstrate(db *gorm.DB, baseLog *logger.Logger) Substrate {
	return &gormSubstrate{db: db, log: baseLog.With("component", "branchstore")}
}

func (s *gormSubstrate) tx(dbc dbctx.Context) *gorm.DB { return dbc.DB(s.db) }

// OpenCommit claims the branch lock via compare-and-swap on
// locked_commit_id, then inserts a new OPEN commit row stamped with
// the current wall-clock timepoint. Contention surfaces as
// apperr.LockContentionError, matching §7's non-retrying contract.
func (s *gormSubstrate) OpenCommit(dbc dbctx.Context, branchPath string, lockMetadata Metadata) (*Commit, error) {
	// Branch rebase/promotion is an external collaborator's concern
	// (§1); every commit this substrate opens on behalf of an in-module
	// caller writes content, so Kind is always CONTENT here.
	commit := &Commit{
		ID:           uuid.New(),
		Path:         branchPath,
		Timepoint:    time.Now().UnixMilli(),
		Kind:         CommitKindContent,
		LockMetadata: lockMetadata,
		State:        CommitOpen,
	}
	txx := s.tx(dbc)
	err := txx.Transaction(func(inner *gorm.DB) error {
		var branch Branch
		if err := inner.Where("path = ?", branchPath).First(&branch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrBranchNotFound
			}
			return apperr.NewTransientStore(err)
		}
		if branch.LockedCommitID != nil {
			return apperr.NewLockContention(branchPath)
		}
		res := inner.Model(&Branch{}).
			Where("path = ? AND locked_commit_id IS NULL", branchPath).
			Update("locked_commit_id", commit.ID)
		if res.Error != nil {
			return apperr.NewTransientStore(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NewLockContention(branchPath)
		}
		if err := inner.Create(commit).Error; err != nil {
			return apperr.NewTransientStore(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commit, nil
}

// MarkSuccessful transitions a commit to SUCCESSFUL and advances the
// branch's head timestamp to the commit's timepoint. The branch lock
// stays held; callers invoke CloseCommit afterward to release it and
// finish the lifecycle (§4.1 open→successful→closed).
func (s *gormSubstrate) MarkSuccessful(dbc dbctx.Context, commitID uuid.UUID) error {
	txx := s.tx(dbc)
	return txx.Transaction(func(inner *gorm.DB) error {
		var commit Commit
		if err := inner.Where("id = ?", commitID).First(&commit).Error; err != nil {
			return apperr.NewTransientStore(err)
		}
		if err := inner.Model(&Commit{}).Where("id = ?", commitID).
			Update("state", CommitSuccessful).Error; err != nil {
			return apperr.NewTransientStore(err)
		}
		return inner.Model(&Branch{}).Where("path = ?", commit.Path).
			Update("head_timestamp", commit.Timepoint).Error
	})
}

// CloseCommit releases the branch lock unconditionally; it is the
// terminal step of both the successful and rollback lifecycles. A
// commit still OPEN (never marked successful) is rolled back first:
// the component rows it wrote are deleted and the versions it ended on
// its branch are reopened.
func (s *gormSubstrate) CloseCommit(dbc dbctx.Context, commitID uuid.UUID) error {
	txx := s.tx(dbc)
	return txx.Transaction(func(inner *gorm.DB) error {
		var commit Commit
		if err := inner.Where("id = ?", commitID).First(&commit).Error; err != nil {
			return apperr.NewTransientStore(err)
		}
		if commit.State == CommitOpen {
			for _, model := range []interface{}{&domain.Concept{}, &domain.Description{}, &domain.Relationship{}, &domain.Identifier{}, &domain.ReferenceSetMember{}} {
				if err := inner.Where("change_commit_id = ?", commitID.String()).Delete(model).Error; err != nil {
					return apperr.NewTransientStore(err)
				}
				if err := inner.Model(model).Where("branch_path = ? AND end_timepoint = ?", commit.Path, commit.Timepoint).
					Update("end_timepoint", nil).Error; err != nil {
					return apperr.NewTransientStore(err)
				}
			}
			if err := inner.Model(&Commit{}).Where("id = ?", commitID).
				Update("state", CommitClosed).Error; err != nil {
				return apperr.NewTransientStore(err)
			}
		}
		return inner.Model(&Branch{}).
			Where("path = ? AND locked_commit_id = ?", commit.Path, commitID).
			Update("locked_commit_id", nil).Error
	})
}

// RollbackCommit only marks the commit ROLLED_BACK; it touches no
// component rows and does not release the lock. Deleting the rows an
// unsuccessful commit wrote happens in CloseCommit.
func (s *gormSubstrate) RollbackCommit(dbc dbctx.Context, commitID uuid.UUID) error {
	txx := s.tx(dbc)
	return txx.Model(&Commit{}).Where("id = ?", commitID).
		Update("state", CommitRolledBack).Error
}

func (s *gormSubstrate) GetBranch(dbc dbctx.Context, path string) (*Branch, error) {
	var branch Branch
	err := s.tx(dbc).Where("path = ?", path).First(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrBranchNotFound
	}
	if err != nil {
		return nil, apperr.NewTransientStore(err)
	}
	return &branch, nil
}

func (s *gormSubstrate) CreateBranch(dbc dbctx.Context, path string, parentBase, parentHead int64) (*Branch, error) {
	branch := &Branch{
		Path:          path,
		BaseTimestamp: parentHead,
		HeadTimestamp: parentHead,
		Metadata:      NewMetadata(),
	}
	if err := s.tx(dbc).Create(branch).Error; err != nil {
		return nil, apperr.NewTransientStore(err)
	}
	return branch, nil
}

func (s *gormSubstrate) UpdateMetadata(dbc dbctx.Context, path string, mutate func(Metadata) Metadata) (*Branch, error) {
	var updated *Branch
	err := s.tx(dbc).Transaction(func(inner *gorm.DB) error {
		var branch Branch
		if err := inner.Clauses().Where("path = ?", path).First(&branch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrBranchNotFound
			}
			return apperr.NewTransientStore(err)
		}
		if branch.Metadata == nil {
			branch.Metadata = NewMetadata()
		}
		branch.Metadata = mutate(branch.Metadata)
		if err := inner.Model(&Branch{}).Where("path = ?", path).
			Update("metadata", branch.Metadata).Error; err != nil {
			return apperr.NewTransientStore(err)
		}
		updated = &branch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// chain walks path up to the root via ParentPath, returning segments
// most-specific first.
func (s *gormSubstrate) chain(dbc dbctx.Context, path string) ([]Branch, error) {
	var out []Branch
	for p := path; p != ""; p = ParentPath(p) {
		var b Branch
		if err := s.tx(dbc).Where("path = ?", p).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.ErrBranchNotFound
			}
			return nil, apperr.NewTransientStore(err)
		}
		out = append(out, b)
		if IsRoot(p) {
			break
		}
	}
	return out, nil
}

// BranchCriteriaOn builds the standard visibility predicate: on the
// target branch up to its head, and on each ancestor up to the point
// the target branch last rebased from it (§4.1, GLOSSARY "branch
// criteria").
func (s *gormSubstrate) BranchCriteriaOn(dbc dbctx.Context, path string) (BranchCriteria, error) {
	chain, err := s.chain(dbc, path)
	if err != nil {
		return BranchCriteria{}, err
	}
	segs := make([]Segment, 0, len(chain))
	cutoff := chain[0].HeadTimestamp
	for _, b := range chain {
		segs = append(segs, Segment{BranchPath: b.Path, Cutoff: cutoff})
		cutoff = b.BaseTimestamp
	}
	return BranchCriteria{Segments: segs}, nil
}

// BranchCriteriaIncludingOpenCommit is BranchCriteriaOn plus an
// overlay surfacing the named open commit's own writes, used by a
// commit's own hooks to see their in-flight changes before promotion.
func (s *gormSubstrate) BranchCriteriaIncludingOpenCommit(dbc dbctx.Context, path string, commitID uuid.UUID) (BranchCriteria, error) {
	criteria, err := s.BranchCriteriaOn(dbc, path)
	if err != nil {
		return BranchCriteria{}, err
	}
	criteria.OpenCommitID = commitID.String()
	return criteria, nil
}

// BranchCriteriaUnpromotedChanges restricts visibility to rows authored
// on path itself after its last rebase (base timestamp) — the changes
// a rebase or promote-to-parent would carry.
func (s *gormSubstrate) BranchCriteriaUnpromotedChanges(dbc dbctx.Context, path string) (BranchCriteria, error) {
	branch, err := s.GetBranch(dbc, path)
	if err != nil {
		return BranchCriteria{}, err
	}
	return BranchCriteria{
		Segments: []Segment{{BranchPath: path, Cutoff: branch.HeadTimestamp, Floor: branch.BaseTimestamp}},
	}, nil
}

// BranchCriteriaUnpromotedChangesAndDeletions is the same scope but
// additionally surfaces tombstoned rows as deletions rather than
// silently omitting them.
func (s *gormSubstrate) BranchCriteriaUnpromotedChangesAndDeletions(dbc dbctx.Context, path string) (BranchCriteria, error) {
	criteria, err := s.BranchCriteriaUnpromotedChanges(dbc, path)
	if err != nil {
		return BranchCriteria{}, err
	}
	criteria.IncludeDeletions = true
	return criteria, nil
}

// BranchCriteriaBeforeOpenCommit is the view as it stood immediately
// before commitID opened: the target branch's ordinary criteria as of
// the commit's own timepoint, without the commit's overlay.
func (s *gormSubstrate) BranchCriteriaBeforeOpenCommit(dbc dbctx.Context, commitID uuid.UUID) (BranchCriteria, error) {
	var commit Commit
	if err := s.tx(dbc).Where("id = ?", commitID).First(&commit).Error; err != nil {
		return BranchCriteria{}, apperr.NewTransientStore(err)
	}
	chain, err := s.chain(dbc, commit.Path)
	if err != nil {
		return BranchCriteria{}, err
	}
	segs := make([]Segment, 0, len(chain))
	cutoff := commit.Timepoint
	for _, b := range chain {
		segs = append(segs, Segment{BranchPath: b.Path, Cutoff: cutoff})
		cutoff = b.BaseTimestamp
	}
	return BranchCriteria{Segments: segs}, nil
}
