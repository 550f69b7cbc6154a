package docstore

import (
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/logger"
)

// Store is the concrete C2 backing every consumer programs against.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStore(db *gorm.DB, baseLog *logger.Logger) *Store {
	return &Store{db: db, log: baseLog.With("component", "docstore")}
}

// DB exposes the base connection for callers that need to pass it into
// the generic Find/NewStream helpers.
func (s *Store) DB() *gorm.DB { return s.db }

// scopeToCriteria folds a branch criteria's segments and open-commit
// overlay into a gorm scope selecting only rows a candidate scan needs
// to consider; branchstore.SelectLatest performs the final per-id
// reduction once rows are materialised.
func scopeToCriteria(db *gorm.DB, criteria branchstore.BranchCriteria) *gorm.DB {
	if len(criteria.Segments) == 0 {
		return db
	}
	paths := make([]interface{}, 0, len(criteria.Segments))
	for _, seg := range criteria.Segments {
		paths = append(paths, seg.BranchPath)
	}
	scoped := db.Where("branch_path IN ?", paths)
	if criteria.OpenCommitID != "" {
		scoped = db.Where("branch_path IN ? OR change_commit_id = ?", paths, criteria.OpenCommitID)
	}
	return scoped
}

// Find runs q (further scoped to criteria) and returns every match,
// already reduced to the latest visible version per component id.
// Used where the result set is small enough to fetch in one shot
// (e.g. the handful of relationships touching a fix's dirty concept
// set); Stream is used for large full-branch scans.
func Find[T branchstore.Enveloped](dbc dbctx.Context, base *gorm.DB, criteria branchstore.BranchCriteria, q Query) ([]T, error) {
	var rows []T
	db := scopeToCriteria(dbc.DB(base), criteria)
	db = Compile(db, q)
	if err := db.Find(&rows).Error; err != nil {
		return nil, apperr.NewTransientStore(err)
	}
	return branchstore.SelectLatest(rows, criteria), nil
}

// Stream is a keyset-paginated cursor over (start_timepoint, id),
// releasing its page buffer on every exit path (§4.2, §5 "resource
// scoping"). Candidate rows are still reduced against criteria inside
// each page, so callers see final, deduplicated results.
type Stream[T branchstore.Enveloped] struct {
	db       *gorm.DB
	criteria branchstore.BranchCriteria
	pageSize int

	afterStart int64
	afterID    string
	buf        []T
	pos        int
	done       bool
}

func NewStream[T branchstore.Enveloped](dbc dbctx.Context, base *gorm.DB, criteria branchstore.BranchCriteria, q Query, pageSize int) *Stream[T] {
	if pageSize <= 0 {
		pageSize = 1000
	}
	db := Compile(scopeToCriteria(dbc.DB(base), criteria), q)
	return &Stream[T]{db: db, criteria: criteria, pageSize: pageSize}
}

func (s *Stream[T]) fetchPage() error {
	var rows []T
	page := s.db.Session(&gorm.Session{}).
		Order("start_timepoint ASC, id ASC").
		Limit(s.pageSize)
	if s.afterID != "" {
		page = page.Where("(start_timepoint, id) > (?, ?)", s.afterStart, s.afterID)
	}
	if err := page.Find(&rows).Error; err != nil {
		return apperr.NewTransientStore(err)
	}
	if len(rows) < s.pageSize {
		s.done = true
	}
	if len(rows) == 0 {
		return nil
	}
	last := rows[len(rows)-1].Envelope()
	s.afterStart = last.StartTime
	s.afterID = last.ID
	s.buf = branchstore.SelectLatest(rows, s.criteria)
	s.pos = 0
	return nil
}

// Next returns the next hit, or false once the stream is exhausted.
func (s *Stream[T]) Next() (T, bool, error) {
	var zero T
	for s.pos >= len(s.buf) {
		if s.done {
			return zero, false, nil
		}
		if err := s.fetchPage(); err != nil {
			return zero, false, err
		}
		if len(s.buf) == 0 && s.done {
			return zero, false, nil
		}
	}
	row := s.buf[s.pos]
	s.pos++
	return row, true, nil
}

// Close releases the stream's page buffer. Streams hold no live
// connection between pages, so Close is a defensive no-op kept for
// symmetry with C2's "scoped cursor release" contract.
func (s *Stream[T]) Close() {
	s.buf = nil
	s.done = true
}

// FindQueryConcepts fetches every QueryConcept row for branchPath at
// the given stated/inferred coordinate. Unlike the versioned RF2
// component tables, QueryConcept carries no commit history of its own
// — a branch's semantic index is replaced wholesale rather than
// layered through branch criteria — so this reads current rows
// directly rather than going through Find's branch-criteria reduction.
func (s *Store) FindQueryConcepts(dbc dbctx.Context, branchPath string, stated bool) ([]domain.QueryConcept, error) {
	var rows []domain.QueryConcept
	err := dbc.DB(s.db).
		Where("branch_path = ? AND stated = ?", branchPath, stated).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.NewTransientStore(err)
	}
	return rows, nil
}

// FieldUpdate is one rewriteAdditionalFields(memberId, {name: value})
// instruction from §9's narrow scripted-update primitive. EffectiveTime
// and ModuleID additionally overwrite those envelope columns in the
// same statement when set, covering the MRCM updater's in-commit
// rewrite of a member it already authored this commit (§4.7 step 7) —
// still one targeted column update, not generic scripting.
type FieldUpdate struct {
	MemberID string
	Fields   map[string]string

	// EffectiveTimeSet gates whether EffectiveTime is applied at all,
	// since EffectiveTime itself may legitimately be nil (clearing the
	// column back to unreleased).
	EffectiveTimeSet bool
	EffectiveTime    *int
	ModuleID         *string
}

// BulkScriptedUpdate applies every update's additional-fields merge
// (and any envelope column overwrite) in one transaction via a JSONB
// `||` merge (the inline-script equivalent named in §4.2), then calls
// Refresh.
func (s *Store) BulkScriptedUpdate(dbc dbctx.Context, table string, updates []FieldUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	db := dbc.DB(s.db)
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			cols := map[string]interface{}{}
			if len(u.Fields) > 0 {
				patch := make(datatypes.JSONMap, len(u.Fields))
				for k, v := range u.Fields {
					patch[k] = v
				}
				cols["additional_fields"] = gorm.Expr("additional_fields || ?", patch)
			}
			if u.EffectiveTimeSet {
				cols["effective_time"] = u.EffectiveTime
			}
			if u.ModuleID != nil {
				cols["module_id"] = *u.ModuleID
			}
			if len(cols) == 0 {
				continue
			}
			res := tx.Table(table).
				Where("id = ?", u.MemberID).
				Updates(cols)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errors.New("rewriteAdditionalFields: member not found: " + u.MemberID)
			}
		}
		return nil
	})
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	return s.Refresh(dbc)
}

// Refresh is the explicit index-refresh step following a scripted
// update. Postgres visibility is immediate within the same
// transaction, so this is a documented no-op — kept as an explicit
// call so a future non-Postgres backing has a seam to hook into.
func (s *Store) Refresh(dbc dbctx.Context) error {
	return nil
}
