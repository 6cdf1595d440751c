package search

import (
	"entity-links/models"

	"github.com/google/uuid"
)

// AuthorityResponse is the top-level structure of the search API response.
type AuthorityResponse struct {
	Authorities  []AuthorityRecord `json:"authorities"`
	TotalRecords int               `json:"totalRecords"`
}

// AuthorityRecord is one authority in the response.
type AuthorityRecord struct {
	ID                uuid.UUID      `json:"id"`
	NaturalID         string         `json:"naturalId"`
	SourceFileBaseURL string         `json:"sourceFileBaseUrl"`
	Fields            []models.Field `json:"fields"`
	Version           int            `json:"_version"`
}

// mapRecordToModel converts a search record into the local authority projection.
func mapRecordToModel(rec AuthorityRecord) models.Authority {
	return models.Authority{
		ID:                rec.ID,
		NaturalID:         rec.NaturalID,
		SourceFileBaseURL: rec.SourceFileBaseURL,
		Fields:            models.MustJSON(rec.Fields),
		Version:           rec.Version,
	}
}
