package ecl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontocore/ontocore-server/internal/semindex"
)

type fakeIndex struct {
	descendants map[string][]string
}

func (f *fakeIndex) Upsert(ctx context.Context, rows []semindex.Concept) error { return nil }

func (f *fakeIndex) ConceptsWithAttributeIn(ctx context.Context, branch string, stated bool, attributeConceptIDs []string) ([]string, error) {
	return nil, nil
}

func (f *fakeIndex) DescendantsOfInclusive(ctx context.Context, branch string, stated bool, conceptID string) ([]string, error) {
	return f.descendants[conceptID], nil
}

func (f *fakeIndex) ExtraConcepts(ctx context.Context, branch string, activeConceptIDs []string) ([]string, []string, error) {
	return nil, nil, nil
}

func (f *fakeIndex) Close(ctx context.Context) error { return nil }

var _ semindex.Index = (*fakeIndex)(nil)

func TestEvaluate_DescendantOrSelf(t *testing.T) {
	idx := &fakeIndex{descendants: map[string][]string{
		"64572001": {"64572001", "73211009", "44054006"},
	}}
	ids, err := Evaluate(context.Background(), idx, "MAIN", true, "<< 64572001")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"64572001", "73211009", "44054006"}, ids)
}

func TestEvaluate_RejectsUnsupportedShapes(t *testing.T) {
	idx := &fakeIndex{}
	cases := []string{
		"<< 64572001 |is a|",
		"64572001",
		"> 64572001",
		"<<abc",
		"",
	}
	for _, expr := range cases {
		_, err := Evaluate(context.Background(), idx, "MAIN", true, expr)
		assert.ErrorIs(t, err, ErrUnsupportedExpression, "expression %q", expr)
	}
}
