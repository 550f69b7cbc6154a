// Package docstore is the concrete Postgres/GORM backing for the
// indexed document store (§4.2): a boolean-tree query DSL compiled to
// a gorm scope, a keyset-paginated streaming cursor, and the narrow
// inline-scripted-update primitive the MRCM updater needs.
package docstore

import "gorm.io/gorm"

// Query is a boolean tree of leaves on indexed field names, mirroring
// §4.2's must/mustNot/should + term/terms/range shape.
type Query struct {
	Must    []Query
	MustNot []Query
	Should  []Query

	Term  *TermClause
	Terms *TermsClause
	Range *RangeClause
}

type TermClause struct {
	Field string
	Value interface{}
}

type TermsClause struct {
	Field  string
	Values []interface{}
}

type RangeClause struct {
	Field string
	GT    interface{}
	GTE   interface{}
	LT    interface{}
	LTE   interface{}
}

func Term(field string, value interface{}) Query {
	return Query{Term: &TermClause{Field: field, Value: value}}
}

func Terms(field string, values []interface{}) Query {
	return Query{Terms: &TermsClause{Field: field, Values: values}}
}

func Range(field string, r RangeClause) Query {
	r.Field = field
	return Query{Range: &r}
}

func Bool(must, mustNot, should []Query) Query {
	return Query{Must: must, MustNot: mustNot, Should: should}
}

// fresh returns an unscoped session rooted at db's connection, used to
// build standalone sub-conditions that Compile then folds back in via
// Where/Not/Or (gorm's grouped-condition idiom).
func fresh(db *gorm.DB) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).Model(db.Statement.Model)
}

// Compile applies q's conditions onto db, returning the scoped chain.
func Compile(db *gorm.DB, q Query) *gorm.DB {
	if q.Term != nil {
		return db.Where(q.Term.Field+" = ?", q.Term.Value)
	}
	if q.Terms != nil {
		return db.Where(q.Terms.Field+" IN ?", q.Terms.Values)
	}
	if q.Range != nil {
		out := db
		if q.Range.GT != nil {
			out = out.Where(q.Range.Field+" > ?", q.Range.GT)
		}
		if q.Range.GTE != nil {
			out = out.Where(q.Range.Field+" >= ?", q.Range.GTE)
		}
		if q.Range.LT != nil {
			out = out.Where(q.Range.Field+" < ?", q.Range.LT)
		}
		if q.Range.LTE != nil {
			out = out.Where(q.Range.Field+" <= ?", q.Range.LTE)
		}
		return out
	}

	out := db
	for _, m := range q.Must {
		out = Compile(out, m)
	}
	for _, mn := range q.MustNot {
		out = out.Not(Compile(fresh(db), mn))
	}
	if len(q.Should) > 0 {
		group := Compile(fresh(db), q.Should[0])
		for _, s := range q.Should[1:] {
			group = group.Or(Compile(fresh(db), s))
		}
		out = out.Where(group)
	}
	return out
}
