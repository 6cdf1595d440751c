package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Authority is the locally known projection of an authority record. It is
// owned by the authority store; links only hold its id.
type Authority struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  string    `json:"-" gorm:"primaryKey;size:64"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	NaturalID         string `json:"naturalId" gorm:"size:255;index"`
	SourceFileBaseURL string `json:"sourceFileBaseUrl,omitempty" gorm:"size:512"`
	// Fields holds the heading fields (1XX) of the authority as JSON.
	Fields  datatypes.JSON `json:"fields" gorm:"type:jsonb"`
	Deleted bool           `json:"deleted" gorm:"not null;default:false"`
	Version int            `json:"_version" gorm:"not null;default:0"`
}

func (Authority) TableName() string {
	return "authorities"
}

// HeadingFields decodes the stored fields.
func (a Authority) HeadingFields() []Field {
	if len(a.Fields) == 0 {
		return nil
	}
	var fields []Field
	if err := json.Unmarshal(a.Fields, &fields); err != nil {
		return nil
	}
	return fields
}

// Candidate projects the authority for matching.
func (a Authority) Candidate() AuthorityCandidate {
	return AuthorityCandidate{
		ID:                a.ID,
		NaturalID:         a.NaturalID,
		SourceFileBaseURL: a.SourceFileBaseURL,
		Fields:            a.HeadingFields(),
	}
}

// AuthorityCandidate is the minimal authority view the suggestion engine needs.
type AuthorityCandidate struct {
	ID                uuid.UUID
	NaturalID         string
	SourceFileBaseURL string
	Fields            []Field
}

// FieldsByTag returns every field of the candidate carrying tag.
func (c AuthorityCandidate) FieldsByTag(tag string) []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// NaturalIDValue renders the $0 value written into linked bib fields.
func (c AuthorityCandidate) NaturalIDValue() string {
	return c.SourceFileBaseURL + c.NaturalID
}
