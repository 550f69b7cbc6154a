package owlexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ConceptRefLiteral(t *testing.T) {
	expr, err := Parse(":73211009")
	require.NoError(t, err)
	assert.Equal(t, ConceptRef{ConceptID: "73211009"}, expr)
}

func TestParse_NestedFunctionCalls(t *testing.T) {
	expr, err := Parse("SubClassOf(:73211009 ObjectSomeValuesFrom(:609096000 :419284002))")
	require.NoError(t, err)
	fc, ok := expr.(FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "SubClassOf", fc.Name)
	require.Len(t, fc.Args, 2)
}

func TestParse_RejectsTrailingInput(t *testing.T) {
	_, err := Parse(":1 :2")
	assert.Error(t, err)
}

func TestParse_RejectsMalformedConceptRef(t *testing.T) {
	_, err := Parse(":abc")
	assert.Error(t, err)
}

func TestParse_RejectsUnterminatedArgumentList(t *testing.T) {
	_, err := Parse("SubClassOf(:1 :2")
	assert.Error(t, err)
}

func TestReferencedConcepts_DeduplicatesAndRecurses(t *testing.T) {
	ids, err := ReferencedConcepts(
		"EquivalentClasses(:64572001 ObjectIntersectionOf(:64572001 ObjectSomeValuesFrom(:609096000 ObjectSomeValuesFrom(:246075003 :419284002))))",
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"64572001":  {},
		"609096000": {},
		"246075003": {},
		"419284002": {},
	}, ids)
}

func TestReferencedConcepts_IsDeterministicAcrossReparse(t *testing.T) {
	expression := "SubClassOf(:73211009 ObjectSomeValuesFrom(:609096000 :419284002))"
	first, err := ReferencedConcepts(expression)
	require.NoError(t, err)
	second, err := ReferencedConcepts(expression)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
