package services

import "entity-links/models"

// ValidateSubfields checks the existence constraints of rule against the
// subfields present on an authority field. On failure it returns the first
// offending subfield code in sorted order.
func ValidateSubfields(rule models.LinkingRule, presence map[string]bool) (bool, string) {
	constraints := rule.ExistenceValidations()
	for _, code := range rule.ExistenceValidationCodes() {
		if constraints[code] != presence[code] {
			return false, code
		}
	}
	return true, ""
}

// ValidateAuthorityField runs ValidateSubfields on a parsed authority field.
func ValidateAuthorityField(rule models.LinkingRule, field models.Field) bool {
	ok, _ := ValidateSubfields(rule, field.SubfieldPresence())
	return ok
}
