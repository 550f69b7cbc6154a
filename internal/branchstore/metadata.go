package branchstore

import "gorm.io/datatypes"

// Metadata keys used on branches (§6).
const (
	SectionInternal     = "INTERNAL"
	SectionAuthorFlags   = "AUTHOR_FLAGS"

	KeyImportType                 = "importType"
	KeyImportingCodeSystemVersion = "importingCodeSystemVersion"
	KeyIntegrityIssue             = "integrityIssue"
	KeyBatchChange                = "batch-change"
	KeyDefaultModuleID             = "defaultModuleId"
)

// Metadata wraps the raw JSON map with typed accessors for the
// INTERNAL / AUTHOR_FLAGS sub-maps and flat top-level keys.
type Metadata datatypes.JSONMap

func NewMetadata() Metadata { return Metadata{} }

func (m Metadata) section(name string) map[string]interface{} {
	raw, ok := m[name]
	if !ok {
		return nil
	}
	sub, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	return sub
}

func (m Metadata) GetNested(section, key string) (string, bool) {
	sub := m.section(section)
	if sub == nil {
		return "", false
	}
	v, ok := sub[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m Metadata) SetNested(section, key, value string) Metadata {
	sub := m.section(section)
	if sub == nil {
		sub = map[string]interface{}{}
	}
	sub[key] = value
	m[section] = sub
	return m
}

func (m Metadata) DeleteNested(section, key string) Metadata {
	sub := m.section(section)
	if sub == nil {
		return m
	}
	delete(sub, key)
	m[section] = sub
	return m
}

func (m Metadata) GetFlat(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m Metadata) SetFlat(key, value string) Metadata {
	m[key] = value
	return m
}

func (m Metadata) JSONMap() datatypes.JSONMap {
	return datatypes.JSONMap(m)
}

func MetadataFrom(j datatypes.JSONMap) Metadata {
	if j == nil {
		return Metadata{}
	}
	return Metadata(j)
}
