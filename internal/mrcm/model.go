// Package mrcm implements the MRCM auto-maintenance commit hook (C7,
// §4.7): loading the Machine-Readable Concept Model rulebook from its
// three reference sets, invoking a pure generator to (re)derive
// attribute rules and domain templates, and writing the result back
// without creating a second version of a member this commit already
// authored.
package mrcm

import "github.com/ontocore/ontocore-server/internal/domain"

// Domain is one active MRCMDomainReferenceSet member, keyed by the
// domain concept it constrains.
type Domain struct {
	MemberID                           string
	ConceptID                          string
	DomainConstraint                   string
	ParentDomain                       string
	ProximalPrimitiveConstraint        string
	ProximalPrimitiveRefinement        string
	DomainTemplateForPrecoordination   string
	DomainTemplateForPostcoordination  string
	GuideURL                           string
}

// AttributeDomain is one active MRCMAttributeDomainReferenceSet
// member: which domain an attribute may be used in, and with what
// cardinality.
type AttributeDomain struct {
	MemberID                    string
	AttributeID                 string
	DomainID                    string
	Grouped                     bool
	AttributeCardinality        string
	AttributeInGroupCardinality string
	RuleStrengthID               string
	ContentTypeID                string
}

// AttributeRange is one active MRCMAttributeRangeReferenceSet member:
// the permitted value range for an attribute.
type AttributeRange struct {
	MemberID        string
	AttributeID     string
	RangeConstraint string
	AttributeRule   string
	RuleStrengthID   string
	ContentTypeID    string
}

const (
	fieldDomainConstraint                  = "domainConstraint"
	fieldParentDomain                      = "parentDomain"
	fieldProximalPrimitiveConstraint       = "proximalPrimitiveConstraint"
	fieldProximalPrimitiveRefinement       = "proximalPrimitiveRefinement"
	fieldDomainTemplateForPrecoordination  = "domainTemplateForPrecoordination"
	fieldDomainTemplateForPostcoordination = "domainTemplateForPostcoordination"
	fieldGuideURL                          = "guideURL"

	fieldAttributeCardinality        = "attributeCardinality"
	fieldAttributeInGroupCardinality = "attributeInGroupCardinality"
	fieldGrouped                     = "grouped"
	fieldDomainID                    = "domainId"
	fieldRuleStrengthID              = "ruleStrengthId"
	fieldContentTypeID               = "contentTypeId"

	fieldRangeConstraint = "rangeConstraint"
	fieldAttributeRule   = "attributeRule"
)

func domainFromMember(m *domain.ReferenceSetMember) Domain {
	return Domain{
		MemberID:                          m.ID,
		ConceptID:                         m.ReferencedComponentID,
		DomainConstraint:                  m.Field(fieldDomainConstraint),
		ParentDomain:                      m.Field(fieldParentDomain),
		ProximalPrimitiveConstraint:       m.Field(fieldProximalPrimitiveConstraint),
		ProximalPrimitiveRefinement:       m.Field(fieldProximalPrimitiveRefinement),
		DomainTemplateForPrecoordination:  m.Field(fieldDomainTemplateForPrecoordination),
		DomainTemplateForPostcoordination: m.Field(fieldDomainTemplateForPostcoordination),
		GuideURL:                          m.Field(fieldGuideURL),
	}
}

func attributeDomainFromMember(m *domain.ReferenceSetMember) AttributeDomain {
	return AttributeDomain{
		MemberID:                    m.ID,
		AttributeID:                 m.ReferencedComponentID,
		DomainID:                    m.Field(fieldDomainID),
		Grouped:                     m.Field(fieldGrouped) == "1",
		AttributeCardinality:        m.Field(fieldAttributeCardinality),
		AttributeInGroupCardinality: m.Field(fieldAttributeInGroupCardinality),
		RuleStrengthID:              m.Field(fieldRuleStrengthID),
		ContentTypeID:               m.Field(fieldContentTypeID),
	}
}

func attributeRangeFromMember(m *domain.ReferenceSetMember) AttributeRange {
	return AttributeRange{
		MemberID:        m.ID,
		AttributeID:      m.ReferencedComponentID,
		RangeConstraint:  m.Field(fieldRangeConstraint),
		AttributeRule:    m.Field(fieldAttributeRule),
		RuleStrengthID:   m.Field(fieldRuleStrengthID),
		ContentTypeID:    m.Field(fieldContentTypeID),
	}
}
