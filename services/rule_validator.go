package services

import (
	"regexp"
	"strconv"
	"strings"

	"entity-links/models"
)

var (
	subjectFieldRE = regexp.MustCompile(`^6\d\d$`)
	subfieldCodeRE = regexp.MustCompile(`^[a-z1-8]$`)
)

const requiredSubjectSubfield = "a"

// ValidateRulePatch checks a patch against the stored rule before anything
// is merged. Every violation is reported in one ValidationError.
func ValidateRulePatch(id int, rule models.LinkingRule, patch models.LinkingRulePatch) error {
	var params []models.Parameter

	if patch.ID != nil && *patch.ID != id {
		params = append(params, models.Parameter{Key: "id", Value: strconv.Itoa(*patch.ID)})
	}

	if patch.AuthoritySubfields != nil {
		if !subjectFieldRE.MatchString(rule.BibField) {
			params = append(params, models.Parameter{Key: "bibField", Value: rule.BibField})
		}
		hasRequired := false
		for _, code := range patch.AuthoritySubfields {
			if code == requiredSubjectSubfield {
				hasRequired = true
			}
			if !subfieldCodeRE.MatchString(code) {
				params = append(params, models.Parameter{Key: "authoritySubfields", Value: code})
			}
		}
		if !hasRequired {
			params = append(params, models.Parameter{
				Key:   "authoritySubfields",
				Value: strings.Join(patch.AuthoritySubfields, ""),
			})
		}
	}

	if len(params) == 0 {
		return nil
	}
	return models.NewValidationError("Invalid linking rule patch", params...)
}
