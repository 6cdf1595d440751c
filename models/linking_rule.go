package models

import (
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// SubfieldModification remaps an authority subfield to a different bib
// subfield code while copying.
type SubfieldModification struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// LinkingRule maps one bib field tag to one authority field tag.
type LinkingRule struct {
	ID       int    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	TenantID string `json:"-" gorm:"primaryKey;size:64"`

	BibField       string `json:"bibField" gorm:"size:3;not null;index"`
	AuthorityField string `json:"authorityField" gorm:"size:3;not null;index"`
	// AuthoritySubfields holds the controlled subfield codes in copy order, e.g. "abcdjq".
	AuthoritySubfields string `json:"authoritySubfields" gorm:"size:64"`

	SubfieldModifications        datatypes.JSON `json:"subfieldModifications,omitempty" gorm:"type:jsonb"`
	SubfieldExistenceValidations datatypes.JSON `json:"validation,omitempty" gorm:"type:jsonb"`
	AutoLinkingEnabled           bool           `json:"autoLinkingEnabled"`
	Version                      int            `json:"version" gorm:"not null;default:0"`
}

func (LinkingRule) TableName() string {
	return "instance_authority_linking_rules"
}

// Modifications decodes the subfield remaps of the rule.
func (r LinkingRule) Modifications() []SubfieldModification {
	var mods []SubfieldModification
	if len(r.SubfieldModifications) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.SubfieldModifications, &mods); err != nil {
		return nil
	}
	return mods
}

// ExistenceValidations decodes the subfield existence constraints.
func (r LinkingRule) ExistenceValidations() map[string]bool {
	if len(r.SubfieldExistenceValidations) == 0 {
		return nil
	}
	var v map[string]bool
	if err := json.Unmarshal(r.SubfieldExistenceValidations, &v); err != nil {
		return nil
	}
	return v
}

// ExistenceValidationCodes returns the constrained subfield codes sorted, so
// validation reports the same failing subfield on every run.
func (r LinkingRule) ExistenceValidationCodes() []string {
	v := r.ExistenceValidations()
	codes := make([]string, 0, len(v))
	for code := range v {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// TargetCode returns the bib subfield an authority subfield is copied into.
func (r LinkingRule) TargetCode(authorityCode string) string {
	for _, m := range r.Modifications() {
		if m.Source == authorityCode {
			return m.Target
		}
	}
	return authorityCode
}

// Controls reports whether the rule overwrites the given bib subfield.
func (r LinkingRule) Controls(bibCode string) bool {
	for _, c := range r.AuthoritySubfields {
		if r.TargetCode(string(c)) == bibCode {
			return true
		}
	}
	return false
}

// SubfieldCodes returns the controlled codes as single-character strings.
func (r LinkingRule) SubfieldCodes() []string {
	codes := make([]string, 0, len(r.AuthoritySubfields))
	for _, c := range r.AuthoritySubfields {
		codes = append(codes, string(c))
	}
	return codes
}

// LinkingRulePatch is a partial update. Nil fields leave the rule untouched.
type LinkingRulePatch struct {
	ID                 *int     `json:"id,omitempty"`
	AutoLinkingEnabled *bool    `json:"autoLinkingEnabled,omitempty"`
	AuthoritySubfields []string `json:"authoritySubfields,omitempty"`
	Version            *int     `json:"version,omitempty"`
}

// Merge applies the patch onto a copy of rule and returns the copy.
func (p LinkingRulePatch) Merge(rule LinkingRule) LinkingRule {
	merged := rule
	if p.AutoLinkingEnabled != nil {
		merged.AutoLinkingEnabled = *p.AutoLinkingEnabled
	}
	if p.AuthoritySubfields != nil {
		merged.AuthoritySubfields = strings.Join(p.AuthoritySubfields, "")
	}
	return merged
}

// MustJSON encodes static rule configuration. It panics on values that
// cannot be encoded, which only happens for programming errors.
func MustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}
