package providers

import (
	"context"

	"entity-links/models"

	"github.com/google/uuid"
)

// AuthoritySearcher looks up authority records in an external search index.
// Implementations return only records that exist for the tenant.
type AuthoritySearcher interface {
	// SearchByNaturalIDs returns the authorities carrying any of the natural ids.
	SearchByNaturalIDs(ctx context.Context, tenantID string, naturalIDs []string) ([]models.Authority, error)

	// SearchByIDs returns the authorities with the given ids.
	SearchByIDs(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.Authority, error)

	// Name returns the unique name of the provider, e.g. "search".
	Name() string
}
