package models

import "github.com/google/uuid"

// Subfield codes with a fixed meaning for linking.
const (
	NaturalIDSubfield   = "0"
	AuthorityIDSubfield = "9"
)

// ErrorCause is an expected, non-exceptional suggestion outcome.
type ErrorCause string

const (
	ErrorCauseNoSuggestions          ErrorCause = "101"
	ErrorCauseMoreThanOneSuggestions ErrorCause = "102"
	ErrorCauseDisabledAutoLinking    ErrorCause = "103"
)

// Name returns the symbolic name of the cause.
func (c ErrorCause) Name() string {
	switch c {
	case ErrorCauseNoSuggestions:
		return "NO_SUGGESTIONS"
	case ErrorCauseMoreThanOneSuggestions:
		return "MORE_THAN_ONE_SUGGESTIONS"
	case ErrorCauseDisabledAutoLinking:
		return "DISABLED_AUTO_LINKING"
	}
	return string(c)
}

// Subfield is one (code, value) pair of a MARC field.
type Subfield struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// LinkDetails describes the link state of a bib field.
type LinkDetails struct {
	AuthorityID        uuid.UUID  `json:"authorityId,omitempty"`
	AuthorityNaturalID string     `json:"authorityNaturalId,omitempty"`
	LinkingRuleID      int        `json:"linkingRuleId,omitempty"`
	Status             LinkStatus `json:"status,omitempty"`
	ErrorCause         ErrorCause `json:"errorCause,omitempty"`
}

// HasLink reports whether the details reference an authority.
func (d *LinkDetails) HasLink() bool {
	return d != nil && (d.AuthorityID != uuid.Nil || d.AuthorityNaturalID != "")
}

// Field is one occurrence of a tagged MARC data field.
type Field struct {
	Tag         string       `json:"tag"`
	Ind1        string       `json:"ind1,omitempty"`
	Ind2        string       `json:"ind2,omitempty"`
	Subfields   []Subfield   `json:"subfields"`
	LinkDetails *LinkDetails `json:"linkDetails,omitempty"`
}

// Values returns the values of every subfield with the given code, in order.
func (f Field) Values(code string) []string {
	var values []string
	for _, sf := range f.Subfields {
		if sf.Code == code {
			values = append(values, sf.Value)
		}
	}
	return values
}

// HasSubfield reports whether the field contains the code at least once.
func (f Field) HasSubfield(code string) bool {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return true
		}
	}
	return false
}

// SubfieldPresence maps every code present on the field to true.
func (f Field) SubfieldPresence() map[string]bool {
	presence := make(map[string]bool, len(f.Subfields))
	for _, sf := range f.Subfields {
		presence[sf.Code] = true
	}
	return presence
}

// ParsedRecord is one bibliographic record already split into fields.
type ParsedRecord struct {
	Leader string  `json:"leader,omitempty"`
	Fields []Field `json:"fields"`
}

// ParsedRecordCollection is the body of a suggestion request.
type ParsedRecordCollection struct {
	Records []ParsedRecord `json:"records"`
}

// AuthoritySearchParameter selects which subfield identifies the authority.
type AuthoritySearchParameter string

const (
	SearchByNaturalID AuthoritySearchParameter = "NATURAL_ID"
	SearchByID        AuthoritySearchParameter = "ID"
)

// Subfield returns the bib subfield code holding the identifier.
func (p AuthoritySearchParameter) Subfield() string {
	if p == SearchByID {
		return AuthorityIDSubfield
	}
	return NaturalIDSubfield
}
