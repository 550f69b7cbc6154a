// Package domain holds the component envelope shared by every RF2
// entity, the release envelope, and the concrete entity types from
// the data model (§3).
package domain

import "gorm.io/datatypes"

// Component is the envelope every domain entity embeds: an opaque id,
// a nullable effective time (YYYYMMDD, null = unreleased), the active
// flag, the owning module, and the release envelope.
type Component struct {
	ID            string  `gorm:"primaryKey;column:id" json:"id"`
	EffectiveTime *int    `gorm:"column:effective_time" json:"effectiveTime"`
	Active        bool    `gorm:"column:active" json:"active"`
	ModuleID      string  `gorm:"column:module_id" json:"moduleId"`
	BranchPath    string  `gorm:"column:branch_path;index" json:"-"`
	StartTime     int64   `gorm:"column:start_timepoint;index" json:"-"`
	EndTime       *int64  `gorm:"column:end_timepoint" json:"-"`

	Released               bool `gorm:"column:released" json:"released"`
	ReleaseHash            string `gorm:"column:release_hash" json:"releaseHash,omitempty"`
	ReleasedEffectiveTime  *int `gorm:"column:released_effective_time" json:"releasedEffectiveTime"`

	// ChangeCommitID names the commit that authored this row's start
	// timepoint, letting an in-progress (open) commit's own writes be
	// surfaced to itself before promotion.
	ChangeCommitID string `gorm:"column:change_commit_id;index" json:"-"`

	Changed bool `gorm:"-" json:"-"`
}

// Envelope returns c itself; entity types embedding Component satisfy
// the Enveloped interface through this method by promotion.
func (c *Component) Envelope() *Component { return c }

// Clear blanks the component and release envelope, as the patcher does
// when clearEffectiveTimes is configured (§4.4).
func (c *Component) Clear() {
	c.EffectiveTime = nil
	c.Released = false
	c.ReleaseHash = ""
	c.ReleasedEffectiveTime = nil
}

// SameReleaseEnvelope reports whether two components carry the same
// release envelope, used to re-derive effectiveTime after copying
// released fields (§4.4).
func (c *Component) SameReleaseEnvelope(other *Component) bool {
	if c.ReleaseHash != other.ReleaseHash {
		return false
	}
	if (c.ReleasedEffectiveTime == nil) != (other.ReleasedEffectiveTime == nil) {
		return false
	}
	if c.ReleasedEffectiveTime != nil && *c.ReleasedEffectiveTime != *other.ReleasedEffectiveTime {
		return false
	}
	return true
}

type Concept struct {
	Component
	DefinitionStatusID string `gorm:"column:definition_status_id" json:"definitionStatusId"`
}

func (Concept) TableName() string { return "concept" }

type Description struct {
	Component
	ConceptID         string `gorm:"column:concept_id;index" json:"conceptId"`
	LanguageCode      string `gorm:"column:language_code" json:"languageCode"`
	TypeID            string `gorm:"column:type_id" json:"typeId"`
	Term              string `gorm:"column:term" json:"term"`
	CaseSignificanceID string `gorm:"column:case_significance_id" json:"caseSignificanceId"`
}

func (Description) TableName() string { return "description" }

type CharacteristicType string

const (
	CharacteristicStated     CharacteristicType = "STATED"
	CharacteristicInferred   CharacteristicType = "INFERRED"
	CharacteristicAdditional CharacteristicType = "ADDITIONAL"
)

type Relationship struct {
	Component
	SourceID             string             `gorm:"column:source_id;index" json:"sourceId"`
	DestinationID         string             `gorm:"column:destination_id;index" json:"destinationId,omitempty"`
	Value                 string             `gorm:"column:value" json:"value,omitempty"`
	RelationshipGroup     int                `gorm:"column:relationship_group" json:"relationshipGroup"`
	TypeID                string             `gorm:"column:type_id;index" json:"typeId"`
	CharacteristicTypeID  CharacteristicType `gorm:"column:characteristic_type_id;index" json:"characteristicTypeId"`
	ModifierID            string             `gorm:"column:modifier_id" json:"modifierId"`
}

func (Relationship) TableName() string { return "relationship" }

// Concrete reports whether this is a concrete-valued relationship
// (destinationId absent, value carries a literal instead) — derived,
// per §3, never stored.
func (r Relationship) Concrete() bool {
	return r.DestinationID == "" && r.Value != ""
}

type Identifier struct {
	Component
	AlternateIdentifier   string `gorm:"column:alternate_identifier" json:"alternateIdentifier"`
	IdentifierSchemeID    string `gorm:"column:identifier_scheme_id" json:"identifierSchemeId"`
	ReferencedComponentID string `gorm:"column:referenced_component_id;index" json:"referencedComponentId"`
}

func (Identifier) TableName() string { return "identifier" }

// ReferenceSetMember carries an open-ended additional-fields map; the
// OWL-axiom refset stores its logical definition under the
// well-known "owlExpression" key (see wellknown.go).
type ReferenceSetMember struct {
	Component
	RefsetID              string         `gorm:"column:refset_id;index" json:"refsetId"`
	ReferencedComponentID  string         `gorm:"column:referenced_component_id;index" json:"referencedComponentId"`
	AdditionalFields       datatypes.JSONMap `gorm:"column:additional_fields;type:jsonb" json:"additionalFields"`
}

func (ReferenceSetMember) TableName() string { return "reference_set_member" }

func (m *ReferenceSetMember) Field(name string) string {
	if m.AdditionalFields == nil {
		return ""
	}
	if v, ok := m.AdditionalFields[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (m *ReferenceSetMember) SetField(name, value string) {
	if m.AdditionalFields == nil {
		m.AdditionalFields = datatypes.JSONMap{}
	}
	m.AdditionalFields[name] = value
}

const OWLExpressionField = "owlExpression"

// QueryConcept is the derived semantic-index row materialising a
// concept's ancestor closure and attribute map for one (branch,
// concept, stated|inferred) coordinate. It is a C2 document like any
// other: the integrity engine queries it directly through docstore;
// internal/semindex additionally mirrors it into a Neo4j graph
// projection so internal/ecl's subtype-closure query runs as a graph
// traversal instead of a JSONB array scan.
type QueryConcept struct {
	ID         string            `gorm:"primaryKey;column:id" json:"id"`
	BranchPath string            `gorm:"column:branch_path;index" json:"branchPath"`
	ConceptID  string            `gorm:"column:concept_id;index" json:"conceptId"`
	Stated     bool              `gorm:"column:stated;index" json:"stated"`
	Ancestors  []string          `gorm:"column:ancestors;type:jsonb;serializer:json" json:"ancestors"`
	Attributes datatypes.JSONMap `gorm:"column:attributes;type:jsonb" json:"attributes"`
}

func (QueryConcept) TableName() string { return "query_concept" }

// AttrTypes returns every attribute typeId present on this row.
func (q QueryConcept) AttrTypes() []string {
	out := make([]string, 0, len(q.Attributes))
	for k := range q.Attributes {
		out = append(out, k)
	}
	return out
}

// AttrValues returns the destination concept ids for attribute typeId.
func (q QueryConcept) AttrValues(typeID string) []string {
	raw, ok := q.Attributes[typeID]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

type CodeSystem struct {
	ID         string `gorm:"primaryKey;column:id" json:"id"`
	BranchPath string `gorm:"column:branch_path;index" json:"branchPath"`
}

func (CodeSystem) TableName() string { return "code_system" }
