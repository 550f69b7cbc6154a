package mrcm

import (
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/docstore"
	"github.com/ontocore/ontocore-server/internal/domain"
)

// Rulebook is the full active modelling rulebook on a branch: every
// active member of the three MRCM reference sets (§4.7 step 2).
type Rulebook struct {
	Domains          []Domain
	AttributeDomains []AttributeDomain
	AttributeRanges  []AttributeRange
}

func toInterfaceSlice(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func findActiveMembers(dbc dbctx.Context, store *docstore.Store, criteria branchstore.BranchCriteria, refsetID string) ([]*domain.ReferenceSetMember, error) {
	return docstore.Find[*domain.ReferenceSetMember](dbc, store.DB(), criteria, docstore.Bool(
		[]docstore.Query{
			docstore.Term("active", true),
			docstore.Term("refset_id", refsetID),
		},
		nil, nil,
	))
}

// loadRulebook fetches every active member of the three MRCM refsets
// visible under criteria, typically the branch's view including the
// open commit's own writes. The returned map carries the raw row
// behind every Domain/AttributeDomain/AttributeRange, keyed by member
// id, since the pure DTOs themselves stay free of store-layer types.
func loadRulebook(dbc dbctx.Context, store *docstore.Store, criteria branchstore.BranchCriteria) (Rulebook, map[string]*domain.ReferenceSetMember, error) {
	domainMembers, err := findActiveMembers(dbc, store, criteria, domain.MRCMDomainRefsetID)
	if err != nil {
		return Rulebook{}, nil, err
	}
	attributeDomainMembers, err := findActiveMembers(dbc, store, criteria, domain.MRCMAttributeDomainRefsetID)
	if err != nil {
		return Rulebook{}, nil, err
	}
	attributeRangeMembers, err := findActiveMembers(dbc, store, criteria, domain.MRCMAttributeRangeRefsetID)
	if err != nil {
		return Rulebook{}, nil, err
	}

	rb := Rulebook{
		Domains:          make([]Domain, 0, len(domainMembers)),
		AttributeDomains: make([]AttributeDomain, 0, len(attributeDomainMembers)),
		AttributeRanges:  make([]AttributeRange, 0, len(attributeRangeMembers)),
	}
	rows := make(map[string]*domain.ReferenceSetMember, len(domainMembers)+len(attributeDomainMembers)+len(attributeRangeMembers))
	for _, m := range domainMembers {
		rb.Domains = append(rb.Domains, domainFromMember(m))
		rows[m.ID] = m
	}
	for _, m := range attributeDomainMembers {
		rb.AttributeDomains = append(rb.AttributeDomains, attributeDomainFromMember(m))
		rows[m.ID] = m
	}
	for _, m := range attributeRangeMembers {
		rb.AttributeRanges = append(rb.AttributeRanges, attributeRangeFromMember(m))
		rows[m.ID] = m
	}
	return rb, rows, nil
}
