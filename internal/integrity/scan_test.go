package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontocore/ontocore-server/internal/domain"
)

func TestAddRelationshipIfBad_RecordsEachBadReference(t *testing.T) {
	r := newRawReport()
	bad := conceptIDSet([]string{"1", "2"})
	rel := &domain.Relationship{
		Component:     domain.Component{ID: "rel-1"},
		SourceID:      "1",
		TypeID:        "9",
		DestinationID: "2",
	}

	r.addRelationshipIfBad(rel, setContains(bad))

	assert.Equal(t, "1", r.sourceMap["rel-1"])
	assert.Equal(t, "2", r.destinationMap["rel-1"])
	_, typeBad := r.typeMap["rel-1"]
	assert.False(t, typeBad)
}

func TestAddRelationshipIfBad_SkipsDestinationOnConcreteRelationship(t *testing.T) {
	r := newRawReport()
	bad := conceptIDSet([]string{"1"})
	rel := &domain.Relationship{
		Component: domain.Component{ID: "rel-1"},
		SourceID:  "1",
		TypeID:    "9",
		Value:     "#5",
	}
	require.True(t, rel.Concrete())

	r.addRelationshipIfBad(rel, setContains(bad))

	assert.Equal(t, "1", r.sourceMap["rel-1"])
	assert.Empty(t, r.destinationMap)
}

func TestAddAxiomIfBad_MergesAcrossCalls(t *testing.T) {
	r := newRawReport()
	member := &domain.ReferenceSetMember{
		Component: domain.Component{ID: "axiom-1"},
	}
	member.SetField(domain.OWLExpressionField, "SubClassOf(:1 :2)")

	bad := conceptIDSet([]string{"1"})
	require.NoError(t, r.addAxiomIfBad(member, setContains(bad)))

	bad2 := conceptIDSet([]string{"2"})
	require.NoError(t, r.addAxiomIfBad(member, setContains(bad2)))

	hit := r.axioms["axiom-1"]
	require.NotNil(t, hit)
	assert.Contains(t, hit.badRefs, "1")
	assert.Contains(t, hit.badRefs, "2")
}

func TestAddAxiomIfBad_NoOpWhenExpressionEmpty(t *testing.T) {
	r := newRawReport()
	member := &domain.ReferenceSetMember{Component: domain.Component{ID: "axiom-1"}}

	require.NoError(t, r.addAxiomIfBad(member, setContains(conceptIDSet([]string{"1"}))))
	assert.Empty(t, r.axioms)
}

func TestNotInSet(t *testing.T) {
	set := conceptIDSet([]string{"1", "2"})
	isBad := notInSet(set)
	assert.False(t, isBad("1"))
	assert.True(t, isBad("3"))
}

func TestDiffSet(t *testing.T) {
	c := conceptIDSet([]string{"1", "2", "3"})
	a := conceptIDSet([]string{"2"})
	diff := diffSet(c, a)
	assert.Len(t, diff, 2)
	assert.Contains(t, diff, "1")
	assert.Contains(t, diff, "3")
}

func TestUnionKeys(t *testing.T) {
	s1 := conceptIDSet([]string{"1", "2"})
	s2 := conceptIDSet([]string{"2", "3"})
	union := unionKeys(s1, s2)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, union)
}
