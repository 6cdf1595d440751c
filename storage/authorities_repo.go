package storage

import (
	"context"
	"fmt"

	"entity-links/models"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// AuthorityRepository stores the local authority projection per tenant.
type AuthorityRepository struct {
	store *Store
}

func NewAuthorityRepository(store *Store) *AuthorityRepository {
	return &AuthorityRepository{store: store}
}

// FindByIDs returns the non-deleted authorities with the given ids.
func (r *AuthorityRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Authority, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var authorities []models.Authority
	err := r.store.scoped(ctx).Where("id IN ? AND deleted = ?", ids, false).Find(&authorities).Error
	if err != nil {
		return nil, fmt.Errorf("load authorities by id: %w", err)
	}
	return authorities, nil
}

// FindByNaturalIDs returns the non-deleted authorities with the given natural ids.
func (r *AuthorityRepository) FindByNaturalIDs(ctx context.Context, naturalIDs []string) ([]models.Authority, error) {
	if len(naturalIDs) == 0 {
		return nil, nil
	}
	var authorities []models.Authority
	err := r.store.scoped(ctx).Where("natural_id IN ? AND deleted = ?", naturalIDs, false).Find(&authorities).Error
	if err != nil {
		return nil, fmt.Errorf("load authorities by natural id: %w", err)
	}
	return authorities, nil
}

// SaveAll upserts authorities into the tenant of ctx.
func (r *AuthorityRepository) SaveAll(ctx context.Context, authorities []models.Authority) error {
	if len(authorities) == 0 {
		return nil
	}
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	rows := make([]models.Authority, len(authorities))
	for i, a := range authorities {
		a.TenantID = tenantID
		rows[i] = a
	}
	err = r.store.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save authorities: %w", err)
	}
	return nil
}
