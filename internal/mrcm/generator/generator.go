// Package generator implements the pure rule-derivation function the
// MRCM updater invokes at §4.7 step 5: given the active rulebook, the
// ECL-evaluated set of concept-model data attributes, and short
// display terms, it derives each attribute's attributeRule and each
// domain's pre/postcoordination template. It performs no I/O.
package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/mrcm"
)

type generator struct{}

// New returns the default mrcm.RuleGenerator.
func New() mrcm.RuleGenerator {
	return generator{}
}

func (generator) Generate(rulebook mrcm.Rulebook, dataAttributes []string, shortTerms map[string]mrcm.ShortTerm) (mrcm.GeneratedRules, error) {
	dataAttrSet := make(map[string]struct{}, len(dataAttributes))
	for _, id := range dataAttributes {
		dataAttrSet[id] = struct{}{}
	}

	domainByConceptID := make(map[string]mrcm.Domain, len(rulebook.Domains))
	for _, d := range rulebook.Domains {
		domainByConceptID[d.ConceptID] = d
	}

	attributeDomainsByDomainID := make(map[string][]mrcm.AttributeDomain)
	for _, ad := range rulebook.AttributeDomains {
		attributeDomainsByDomainID[ad.DomainID] = append(attributeDomainsByDomainID[ad.DomainID], ad)
	}

	rangeByAttributeID := make(map[string]mrcm.AttributeRange, len(rulebook.AttributeRanges))
	for _, ar := range rulebook.AttributeRanges {
		if _, ok := dataAttrSet[ar.AttributeID]; !ok {
			return mrcm.GeneratedRules{}, apperr.NewRuntimeState("mrcm.generate",
				fmt.Sprintf("attribute %s has a range member but is not a concept-model data attribute", ar.AttributeID))
		}
		rangeByAttributeID[ar.AttributeID] = ar
	}

	out := mrcm.GeneratedRules{
		AttributeRules:                     make(map[string]string),
		RangeConstraints:                   make(map[string]string),
		DomainTemplatesForPrecoordination:  make(map[string]string),
		DomainTemplatesForPostcoordination: make(map[string]string),
	}

	for _, ar := range rulebook.AttributeRanges {
		out.RangeConstraints[ar.MemberID] = ar.RangeConstraint
	}
	for _, ad := range rulebook.AttributeDomains {
		rng, hasRange := rangeByAttributeID[ad.AttributeID]
		out.AttributeRules[ad.MemberID] = attributeRule(ad, domainByConceptID[ad.DomainID], rng, hasRange, shortTerms)
	}

	for _, d := range rulebook.Domains {
		attrs := attributeDomainsByDomainID[d.ConceptID]
		sort.Slice(attrs, func(i, j int) bool { return attrs[i].AttributeID < attrs[j].AttributeID })
		out.DomainTemplatesForPrecoordination[d.MemberID] = domainTemplate(d.DomainConstraint, attrs, rangeByAttributeID, shortTerms)
		post := d.ProximalPrimitiveConstraint
		if post == "" {
			post = d.DomainConstraint
		}
		out.DomainTemplatesForPostcoordination[d.MemberID] = domainTemplate(post, attrs, rangeByAttributeID, shortTerms)
	}

	return out, nil
}

// attributeRule renders one attributeDomain row's usage constraint:
// the domain it applies in, its cardinality, and the range it must
// satisfy when present.
func attributeRule(ad mrcm.AttributeDomain, d mrcm.Domain, rng mrcm.AttributeRange, hasRange bool, shortTerms map[string]mrcm.ShortTerm) string {
	domainConstraint := d.DomainConstraint
	if domainConstraint == "" {
		domainConstraint = "<< " + ad.DomainID
	}
	attrTerm := termFor(ad.AttributeID, shortTerms)
	cardinality := ad.AttributeCardinality
	if cardinality == "" {
		cardinality = "0..*"
	}
	clause := fmt.Sprintf("[[%s]] %s |%s|", cardinality, ad.AttributeID, attrTerm)
	if ad.Grouped {
		groupCard := ad.AttributeInGroupCardinality
		if groupCard == "" {
			groupCard = "0..*"
		}
		clause = fmt.Sprintf("{[[%s]] %s}", groupCard, clause)
	}
	if hasRange && rng.RangeConstraint != "" {
		clause = fmt.Sprintf("%s = %s", clause, rng.RangeConstraint)
	}
	return fmt.Sprintf("%s: %s", domainConstraint, clause)
}

// domainTemplate renders a domain's attribute group as an MRCM
// template: base concept constraint plus every applicable attribute
// clause, ordered by attribute id for determinism.
func domainTemplate(base string, attrs []mrcm.AttributeDomain, rangeByAttributeID map[string]mrcm.AttributeRange, shortTerms map[string]mrcm.ShortTerm) string {
	if base == "" {
		base = "SELF"
	}
	clauses := make([]string, 0, len(attrs))
	for _, ad := range attrs {
		rng, hasRange := rangeByAttributeID[ad.AttributeID]
		term := termFor(ad.AttributeID, shortTerms)
		cardinality := ad.AttributeCardinality
		if cardinality == "" {
			cardinality = "0..*"
		}
		valueConstraint := "*"
		if hasRange && rng.RangeConstraint != "" {
			valueConstraint = rng.RangeConstraint
		}
		clause := fmt.Sprintf("[[%s]] %s |%s| = %s", cardinality, ad.AttributeID, term, valueConstraint)
		if ad.Grouped {
			groupCard := ad.AttributeInGroupCardinality
			if groupCard == "" {
				groupCard = "0..*"
			}
			clause = fmt.Sprintf("{[[%s]] %s}", groupCard, clause)
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return fmt.Sprintf("[[+id(active=1)]]: %s { }", base)
	}
	return fmt.Sprintf("[[+id(active=1)]]: %s { %s }", base, strings.Join(clauses, ", "))
}

func termFor(conceptID string, shortTerms map[string]mrcm.ShortTerm) string {
	if st, ok := shortTerms[conceptID]; ok && st.Term != "" {
		return st.Term
	}
	return conceptID
}
