package services

import (
	"regexp"
	"strings"

	"entity-links/models"

	"github.com/google/uuid"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var uuidRE = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[1-5][a-fA-F0-9]{3}-[89abAB][a-fA-F0-9]{3}-[a-fA-F0-9]{12}$`)

// NormalizeNaturalID trims a $0 value to the part after the last "/" and
// brings it into NFC form, so "http://id.loc.gov/authorities/names/n123"
// and "n123" resolve to the same authority.
func NormalizeNaturalID(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.LastIndex(value, "/"); i >= 0 {
		value = value[i+1:]
	}
	normalized, _, err := transform.String(transform.Chain(norm.NFC), value)
	if err != nil {
		return value
	}
	return strings.TrimSpace(normalized)
}

// ParseAuthorityID parses a $9 value. Values that are not UUIDs are rejected.
func ParseAuthorityID(value string) (uuid.UUID, bool) {
	value = strings.TrimSpace(value)
	if !uuidRE.MatchString(value) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// fieldIdentifiers returns the identifiers of a bib field for the given
// search parameter, including the one recorded in its link details.
func fieldIdentifiers(field models.Field, param models.AuthoritySearchParameter) []string {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, v := range field.Values(param.Subfield()) {
		if param == models.SearchByID {
			if id, ok := ParseAuthorityID(v); ok {
				add(id.String())
			}
			continue
		}
		add(NormalizeNaturalID(v))
	}

	if d := field.LinkDetails; d != nil {
		if param == models.SearchByID && d.AuthorityID != uuid.Nil {
			add(d.AuthorityID.String())
		}
		if param == models.SearchByNaturalID && d.AuthorityNaturalID != "" {
			add(NormalizeNaturalID(d.AuthorityNaturalID))
		}
	}
	return ids
}
