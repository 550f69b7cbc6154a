package domain

// Well-known concept identifiers consumed as opaque strings (§6).
const (
	InferredRelationshipID     = "900000000000011006"
	StatedRelationshipID       = "900000000000010007"
	OWLAxiomReferenceSetID     = "733073007"
	MRCMDomainRefsetID         = "723560006"
	MRCMAttributeDomainRefsetID = "723561005"
	MRCMAttributeRangeRefsetID  = "723562003"
	ConceptModelDataAttributeID = "762705008"

	// Description type ids consumed for integrity-report display
	// enrichment (§4.6.4): FSN for the full display term, Synonym as a
	// best-effort stand-in for "preferred term" (true acceptability is
	// language-refset-scoped and out of scope here).
	FSNTypeID      = "900000000000003001"
	SynonymTypeID  = "900000000000013009"
)

// StatedRelationshipDropList is a tiny, unexplained allow-list of
// stated-relationship ids that must be dropped from the stated
// relationships stream to avoid double ingestion with the inferred
// file (§4.5 "well-known quirk"). Kept as a tunable constant rather
// than inlined, per the open question in §9.
var StatedRelationshipDropList = []string{
	"3187444026",
	"3192499027",
	"3574321020",
}

func IsDroppedStatedRelationship(id string) bool {
	for _, dropped := range StatedRelationshipDropList {
		if dropped == id {
			return true
		}
	}
	return false
}

// MRCMRefsetIDs is the set of reference sets that trigger an MRCM
// update when one of their members changes in a commit (§4.7 step 1).
var MRCMRefsetIDs = []string{
	MRCMDomainRefsetID,
	MRCMAttributeDomainRefsetID,
	MRCMAttributeRangeRefsetID,
}

func IsMRCMRefset(refsetID string) bool {
	for _, id := range MRCMRefsetIDs {
		if id == refsetID {
			return true
		}
	}
	return false
}
