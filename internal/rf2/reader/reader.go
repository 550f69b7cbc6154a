// Package reader drives a Callbacks implementation from RF2
// tab-separated rows. Archive unpacking is out of scope (§1
// non-goals); LineSource consumes an already-materialized set of
// per-file readers, one row at a time, mirroring the archive reader's
// push-style callback contract (§4.5 step 3).
package reader

import (
	"bufio"
	"io"
	"strings"
)

// Callbacks is one method per RF2 component kind, matching §4.5 step 3
// and the original archive reader's ImpotentComponentFactory contract.
type Callbacks interface {
	NewConceptState(id, effectiveTime, active, moduleID, definitionStatusID string)
	NewDescriptionState(id, effectiveTime, active, moduleID, conceptID, languageCode, typeID, term, caseSignificanceID string)
	NewRelationshipState(id, effectiveTime, active, moduleID, sourceID, destinationID, group, typeID, characteristicTypeID, modifierID string)
	NewConcreteRelationshipState(id, effectiveTime, active, moduleID, sourceID, value, group, typeID, characteristicTypeID, modifierID string)
	NewIdentifierState(alternateIdentifier, effectiveTime, active, moduleID, identifierSchemeID, referencedComponentID string)
	NewReferenceSetMemberState(fieldNames []string, id, effectiveTime, active, moduleID, refsetID, referencedComponentID string, otherValues []string)
}

// FileKind names which callback a TSV file's rows should be routed
// to; the archive layer (out of scope) is responsible for classifying
// files by name pattern before calling ReadFile.
type FileKind string

const (
	KindConcept      FileKind = "CONCEPT"
	KindDescription  FileKind = "DESCRIPTION"
	KindRelationship FileKind = "RELATIONSHIP"
	KindConcreteRelationship FileKind = "CONCRETE_RELATIONSHIP"
	KindIdentifier   FileKind = "IDENTIFIER"
	KindRefsetMember FileKind = "REFSET_MEMBER"
)

// LineSource reads one RF2 TSV file and invokes cb for each row.
type LineSource interface {
	ReadFile(r io.Reader, kind FileKind, cb Callbacks) error
}

// TSVLineSource is the concrete LineSource: a header line naming
// fields, then one row per line, tab-separated, refset files carrying
// a variable tail of additional fields (§6).
type TSVLineSource struct{}

func NewTSVLineSource() *TSVLineSource { return &TSVLineSource{} }

func (s *TSVLineSource) ReadFile(r io.Reader, kind FileKind, cb Callbacks) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		return scanner.Err()
	}
	header := strings.Split(scanner.Text(), "\t")

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if err := dispatch(kind, header, fields, cb); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func dispatch(kind FileKind, header, fields []string, cb Callbacks) error {
	get := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch kind {
	case KindConcept:
		cb.NewConceptState(get(0), get(1), get(2), get(3), get(4))
	case KindDescription:
		cb.NewDescriptionState(get(0), get(1), get(2), get(3), get(4), get(5), get(6), get(7), get(8))
	case KindRelationship:
		cb.NewRelationshipState(get(0), get(1), get(2), get(3), get(4), get(5), get(6), get(7), get(8), get(9))
	case KindConcreteRelationship:
		cb.NewConcreteRelationshipState(get(0), get(1), get(2), get(3), get(4), get(5), get(6), get(7), get(8), get(9))
	case KindIdentifier:
		cb.NewIdentifierState(get(0), get(1), get(2), get(3), get(4), get(5))
	case KindRefsetMember:
		const memberAdditionalFieldOffset = 6
		otherValues := fields[min(memberAdditionalFieldOffset, len(fields)):]
		cb.NewReferenceSetMemberState(header, get(0), get(1), get(2), get(3), get(4), get(5), otherValues)
	}
	return nil
}
