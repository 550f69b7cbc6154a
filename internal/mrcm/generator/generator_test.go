package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontocore/ontocore-server/internal/mrcm"
)

func TestGenerate_AttributeRuleAndRangeConstraint(t *testing.T) {
	rulebook := mrcm.Rulebook{
		Domains: []mrcm.Domain{
			{MemberID: "dom-1", ConceptID: "404684003", DomainConstraint: "<< 404684003"},
		},
		AttributeDomains: []mrcm.AttributeDomain{
			{MemberID: "ad-1", AttributeID: "363698007", DomainID: "404684003", AttributeCardinality: "0..1"},
		},
		AttributeRanges: []mrcm.AttributeRange{
			{MemberID: "ar-1", AttributeID: "363698007", RangeConstraint: "<< 442083009"},
		},
	}
	shortTerms := map[string]mrcm.ShortTerm{
		"363698007": {ConceptID: "363698007", Term: "Finding site"},
	}

	out, err := New().Generate(rulebook, []string{"363698007"}, shortTerms)
	require.NoError(t, err)

	assert.Equal(t, "<< 442083009", out.RangeConstraints["ar-1"])
	assert.Equal(t, "<< 404684003: [[0..1]] 363698007 |Finding site| = << 442083009", out.AttributeRules["ad-1"])
	assert.Contains(t, out.DomainTemplatesForPrecoordination["dom-1"], "363698007")
	assert.Contains(t, out.DomainTemplatesForPrecoordination["dom-1"], "Finding site")
}

func TestGenerate_DefaultsWhenFieldsMissing(t *testing.T) {
	rulebook := mrcm.Rulebook{
		Domains: []mrcm.Domain{
			{MemberID: "dom-1", ConceptID: "404684003"},
		},
		AttributeDomains: []mrcm.AttributeDomain{
			{MemberID: "ad-1", AttributeID: "363698007", DomainID: "404684003", Grouped: true},
		},
	}

	out, err := New().Generate(rulebook, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "<< 404684003: {[[0..*]] [[0..*]] 363698007 |363698007|}", out.AttributeRules["ad-1"])
	assert.Equal(t, "[[+id(active=1)]]: SELF { {[[0..*]] [[0..*]] 363698007 |363698007| = *} }", out.DomainTemplatesForPrecoordination["dom-1"])
}

func TestGenerate_RejectsRangeOnNonDataAttribute(t *testing.T) {
	rulebook := mrcm.Rulebook{
		AttributeRanges: []mrcm.AttributeRange{
			{MemberID: "ar-1", AttributeID: "363698007", RangeConstraint: "<< 442083009"},
		},
	}

	_, err := New().Generate(rulebook, []string{"999999999"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "363698007")
}

func TestGenerate_Deterministic(t *testing.T) {
	rulebook := mrcm.Rulebook{
		Domains: []mrcm.Domain{
			{MemberID: "dom-1", ConceptID: "404684003"},
		},
		AttributeDomains: []mrcm.AttributeDomain{
			{MemberID: "ad-2", AttributeID: "999000001", DomainID: "404684003"},
			{MemberID: "ad-1", AttributeID: "363698007", DomainID: "404684003"},
		},
	}

	first, err := New().Generate(rulebook, nil, nil)
	require.NoError(t, err)
	second, err := New().Generate(rulebook, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first.DomainTemplatesForPrecoordination["dom-1"], second.DomainTemplatesForPrecoordination["dom-1"])
}
