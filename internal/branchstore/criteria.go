package branchstore

import "github.com/ontocore/ontocore-server/internal/domain"

// Segment scopes visibility to one branch in the ancestor chain: rows
// authored on BranchPath are visible up to Cutoff (and, when Floor is
// set, only if authored strictly after Floor — used for "unpromoted
// changes" scoping).
type Segment struct {
	BranchPath string
	Cutoff     int64
	Floor      int64
}

// BranchCriteria is the predicate selecting "the view of components
// visible on a particular branch at a particular point" (§4.1,
// GLOSSARY). Segments are ordered most-specific (the target branch)
// first, root last: a version on a more specific branch masks any
// version of the same id on a less specific one.
type BranchCriteria struct {
	Segments         []Segment
	OpenCommitID     string // rows tagged with this open commit are additionally visible
	IncludeDeletions bool   // surface ended rows with no replacement as deletions
}

// Enveloped is implemented (via embedding domain.Component) by every
// entity type, letting the branch-criteria reduction operate
// generically without reflection.
type Enveloped interface {
	Envelope() *domain.Component
}

// SelectLatest reduces a superset of candidate rows (already filtered
// to branches appearing in criteria.Segments, typically by the store)
// down to the single latest visible version per component id, honoring
// branch-specificity masking and the open-commit overlay.
func SelectLatest[T Enveloped](rows []T, criteria BranchCriteria) []T {
	type slot struct {
		specificity int
		row         T
		has         bool
	}
	best := map[string]slot{}

	specificityOf := func(branchPath string) (int, bool) {
		for i, seg := range criteria.Segments {
			if seg.BranchPath == branchPath {
				return i, true
			}
		}
		return 0, false
	}

	for _, row := range rows {
		env := row.Envelope()

		if criteria.OpenCommitID != "" && env.ChangeCommitID == criteria.OpenCommitID {
			cur, ok := best[env.ID]
			if !ok || cur.specificity > -1 {
				best[env.ID] = slot{specificity: -1, row: row, has: true}
			}
			continue
		}

		spec, ok := specificityOf(env.BranchPath)
		if !ok {
			continue
		}
		seg := criteria.Segments[spec]
		if env.StartTime > seg.Cutoff {
			continue
		}
		if seg.Floor != 0 && env.StartTime <= seg.Floor {
			continue
		}
		if !criteria.IncludeDeletions && env.EndTime != nil && *env.EndTime <= seg.Cutoff {
			continue
		}

		cur, exists := best[env.ID]
		if !exists || spec < cur.specificity || (spec == cur.specificity && env.StartTime > cur.row.Envelope().StartTime) {
			best[env.ID] = slot{specificity: spec, row: row, has: true}
		}
	}

	out := make([]T, 0, len(best))
	for _, s := range best {
		if !s.has {
			continue
		}
		if !criteria.IncludeDeletions && s.row.Envelope().EndTime != nil {
			continue
		}
		out = append(out, s.row)
	}
	return out
}
