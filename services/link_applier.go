package services

import (
	"entity-links/models"
)

// ApplyLink rewrites field with the controlled subfields of authorityField
// and stamps its link details. Written order: copied controlled subfields,
// $0, $9, then the uncontrolled bib subfields in their original order.
func ApplyLink(field *models.Field, rule models.LinkingRule, candidate models.AuthorityCandidate, authorityField models.Field) {
	status := models.LinkStatusNew
	if field.LinkDetails.HasLink() {
		status = models.LinkStatusActual
	}

	subfields := make([]models.Subfield, 0, len(field.Subfields)+len(authorityField.Subfields)+2)
	for _, code := range rule.SubfieldCodes() {
		target := rule.TargetCode(code)
		for _, value := range authorityField.Values(code) {
			subfields = append(subfields, models.Subfield{Code: target, Value: value})
		}
	}
	if candidate.NaturalID != "" {
		subfields = append(subfields, models.Subfield{Code: models.NaturalIDSubfield, Value: candidate.NaturalIDValue()})
	}
	subfields = append(subfields, models.Subfield{Code: models.AuthorityIDSubfield, Value: candidate.ID.String()})

	for _, sf := range field.Subfields {
		if sf.Code == models.NaturalIDSubfield || sf.Code == models.AuthorityIDSubfield || rule.Controls(sf.Code) {
			continue
		}
		subfields = append(subfields, sf)
	}

	field.Subfields = subfields
	field.LinkDetails = &models.LinkDetails{
		AuthorityID:        candidate.ID,
		AuthorityNaturalID: candidate.NaturalID,
		LinkingRuleID:      rule.ID,
		Status:             status,
	}
}

// MarkError stamps an outcome error on field and leaves its subfields untouched.
func MarkError(field *models.Field, cause models.ErrorCause) {
	field.LinkDetails = &models.LinkDetails{
		Status:     models.LinkStatusError,
		ErrorCause: cause,
	}
}
