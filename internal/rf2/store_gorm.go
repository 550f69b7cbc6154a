package rf2

import (
	"gorm.io/gorm"

	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/docstore"
	"github.com/ontocore/ontocore-server/internal/domain"
)

// GormStore is the concrete Store backing the coordinator in
// production: Save* writes through docstore.SaveVersioned, and the
// patcher lookups run table-scoped docstore.Find queries reduced to
// the latest visible version per id (§4.4, grounded on
// ImportComponentFactoryImpl's DAO delegation).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SaveConcepts(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Concept) error {
	return docstore.SaveVersioned(dbc, s.db, commit, entities)
}

func (s *GormStore) SaveDescriptions(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Description) error {
	return docstore.SaveVersioned(dbc, s.db, commit, entities)
}

func (s *GormStore) SaveRelationships(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Relationship) error {
	return docstore.SaveVersioned(dbc, s.db, commit, entities)
}

func (s *GormStore) SaveIdentifiers(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.Identifier) error {
	return docstore.SaveVersioned(dbc, s.db, commit, entities)
}

func (s *GormStore) SaveMembers(dbc dbctx.Context, commit *branchstore.Commit, entities []*domain.ReferenceSetMember) error {
	return docstore.SaveVersioned(dbc, s.db, commit, entities)
}

func toIfaceSlice(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// ExistingAtOrAfter implements §4.4's existence probe, dispatched by
// table name since Store's callers are table-generic but gorm's
// generic Find needs a concrete type parameter per kind.
func (s *GormStore) ExistingAtOrAfter(dbc dbctx.Context, table string, ids []string, criteria branchstore.BranchCriteria, effectiveTime int, strictlyAfter bool) (map[string]bool, error) {
	r := docstore.RangeClause{Field: "effective_time"}
	if strictlyAfter {
		r.GT = effectiveTime
	} else {
		r.GTE = effectiveTime
	}
	q := docstore.Bool([]docstore.Query{
		docstore.Terms("id", toIfaceSlice(ids)),
		{Range: &r},
	}, nil, nil)

	var hitIDs []string
	switch table {
	case "concept":
		rows, err := docstore.Find[*domain.Concept](dbc, s.db, criteria, q)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			hitIDs = append(hitIDs, row.ID)
		}
	case "description":
		rows, err := docstore.Find[*domain.Description](dbc, s.db, criteria, q)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			hitIDs = append(hitIDs, row.ID)
		}
	case "relationship":
		rows, err := docstore.Find[*domain.Relationship](dbc, s.db, criteria, q)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			hitIDs = append(hitIDs, row.ID)
		}
	case "identifier":
		rows, err := docstore.Find[*domain.Identifier](dbc, s.db, criteria, q)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			hitIDs = append(hitIDs, row.ID)
		}
	case "reference_set_member":
		rows, err := docstore.Find[*domain.ReferenceSetMember](dbc, s.db, criteria, q)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			hitIDs = append(hitIDs, row.ID)
		}
	}
	out := make(map[string]bool, len(hitIDs))
	for _, id := range hitIDs {
		out[id] = true
	}
	return out, nil
}

func lastReleasedQuery(ids []string) docstore.Query {
	return docstore.Bool([]docstore.Query{
		docstore.Terms("id", toIfaceSlice(ids)),
		docstore.Term("released", true),
	}, nil, nil)
}

func (s *GormStore) LastReleasedConcepts(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Concept, error) {
	rows, err := docstore.Find[*domain.Concept](dbc, s.db, criteria, lastReleasedQuery(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Concept, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (s *GormStore) LastReleasedDescriptions(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Description, error) {
	rows, err := docstore.Find[*domain.Description](dbc, s.db, criteria, lastReleasedQuery(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Description, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (s *GormStore) LastReleasedRelationships(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Relationship, error) {
	rows, err := docstore.Find[*domain.Relationship](dbc, s.db, criteria, lastReleasedQuery(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Relationship, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (s *GormStore) LastReleasedIdentifiers(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.Identifier, error) {
	rows, err := docstore.Find[*domain.Identifier](dbc, s.db, criteria, lastReleasedQuery(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Identifier, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (s *GormStore) LastReleasedMembers(dbc dbctx.Context, ids []string, criteria branchstore.BranchCriteria) (map[string]*domain.ReferenceSetMember, error) {
	rows, err := docstore.Find[*domain.ReferenceSetMember](dbc, s.db, criteria, lastReleasedQuery(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.ReferenceSetMember, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

var _ Store = (*GormStore)(nil)
