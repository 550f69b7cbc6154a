package docstore

import (
	"gorm.io/gorm"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
)

// SaveVersioned is C2's commit-time write path: every row is stamped
// with commit's branch path, timepoint and id, then written under one
// invariant (§3): no two versions of the same component id coexist
// within a single commit. A row this same commit already wrote (same
// id, same change_commit_id) is rewritten in place; any other row
// still open on the branch for that id is closed at the commit's
// timepoint before the new version is inserted.
func SaveVersioned[T branchstore.Enveloped](dbc dbctx.Context, base *gorm.DB, commit *branchstore.Commit, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		env := row.Envelope()
		env.BranchPath = commit.Path
		env.StartTime = commit.Timepoint
		env.ChangeCommitID = commit.ID.String()
		ids[i] = env.ID
	}

	var zero T
	tx := dbc.DB(base)
	err := tx.Transaction(func(inner *gorm.DB) error {
		var ownRows []T
		if err := inner.Model(zero).
			Where("branch_path = ? AND change_commit_id = ? AND id IN ?", commit.Path, commit.ID.String(), ids).
			Find(&ownRows).Error; err != nil {
			return err
		}
		ownIDs := make(map[string]bool, len(ownRows))
		for _, row := range ownRows {
			ownIDs[row.Envelope().ID] = true
		}

		if err := inner.Model(zero).
			Where("branch_path = ? AND id IN ? AND end_timepoint IS NULL AND change_commit_id != ?", commit.Path, ids, commit.ID.String()).
			Update("end_timepoint", commit.Timepoint).Error; err != nil {
			return err
		}

		var toInsert []T
		for _, row := range rows {
			id := row.Envelope().ID
			if ownIDs[id] {
				if err := inner.Model(zero).
					Where("branch_path = ? AND change_commit_id = ? AND id = ?", commit.Path, commit.ID.String(), id).
					Updates(row).Error; err != nil {
					return err
				}
				continue
			}
			toInsert = append(toInsert, row)
		}
		if len(toInsert) > 0 {
			if err := inner.Create(&toInsert).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	return nil
}
