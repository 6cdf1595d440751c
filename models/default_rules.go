package models

// DefaultLinkingRules returns the rule set seeded for a new tenant, ordered by id.
func DefaultLinkingRules() []LinkingRule {
	noT := map[string]bool{"t": false}
	withT := map[string]bool{"t": true}
	tToA := []SubfieldModification{{Source: "t", Target: "a"}}

	rule := func(id int, bib, authority, subfields string, mods []SubfieldModification, validation map[string]bool) LinkingRule {
		r := LinkingRule{
			ID:                 id,
			BibField:           bib,
			AuthorityField:     authority,
			AuthoritySubfields: subfields,
			AutoLinkingEnabled: true,
		}
		if len(mods) > 0 {
			r.SubfieldModifications = MustJSON(mods)
		}
		if len(validation) > 0 {
			r.SubfieldExistenceValidations = MustJSON(validation)
		}
		return r
	}

	return []LinkingRule{
		rule(1, "100", "100", "abcdjq", nil, noT),
		rule(2, "110", "110", "abcd", nil, noT),
		rule(3, "111", "111", "acdenq", nil, noT),
		rule(4, "130", "130", "adfghklmnoprs", nil, nil),
		rule(5, "240", "100", "fghklmnoprst", tToA, withT),
		rule(6, "240", "110", "fghklmnoprst", tToA, withT),
		rule(7, "240", "111", "fghklmnoprst", tToA, withT),
		rule(8, "600", "100", "abcdgjqfhklmnoprst", nil, nil),
		rule(9, "610", "110", "abcdgfhklmnoprst", nil, nil),
		rule(10, "611", "111", "acdegjqfhklnpst", nil, nil),
		rule(11, "630", "130", "adfghklmnoprst", nil, nil),
		rule(12, "650", "150", "abgvxyz", nil, nil),
		rule(13, "651", "151", "agvxyz", nil, nil),
		rule(14, "655", "155", "avxyz", nil, nil),
		rule(15, "700", "100", "abcdjqfhklmnoprstg", nil, nil),
		rule(16, "710", "110", "abcdfghklmnoprst", nil, nil),
		rule(17, "711", "111", "acdefghjklnpqst", nil, nil),
		rule(18, "730", "130", "adfghklmnoprs", nil, nil),
		rule(19, "800", "100", "abcdjqfghklmnoprst", nil, nil),
		rule(20, "810", "110", "abcdfghklmnoprst", nil, nil),
		rule(21, "811", "111", "acdefghjklnpqst", nil, nil),
		rule(22, "830", "130", "adfghklmnoprs", nil, nil),
	}
}
