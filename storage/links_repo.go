package storage

import (
	"context"
	"fmt"

	"entity-links/models"

	"github.com/google/uuid"
)

// InstanceLinkRepository persists instance-authority links per tenant.
type InstanceLinkRepository struct {
	store *Store
}

func NewInstanceLinkRepository(store *Store) *InstanceLinkRepository {
	return &InstanceLinkRepository{store: store}
}

// FindByInstanceID returns the links of one instance ordered by id.
func (r *InstanceLinkRepository) FindByInstanceID(ctx context.Context, instanceID uuid.UUID) ([]models.InstanceAuthorityLink, error) {
	var links []models.InstanceAuthorityLink
	err := r.store.scoped(ctx).Where("instance_id = ?", instanceID).Order("id").Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("load links of instance %s: %w", instanceID, err)
	}
	return links, nil
}

// FindAllByID returns the links with the given ids. Unknown ids are ignored.
func (r *InstanceLinkRepository) FindAllByID(ctx context.Context, ids []int64) ([]models.InstanceAuthorityLink, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var links []models.InstanceAuthorityLink
	if err := r.store.scoped(ctx).Where("id IN ?", ids).Order("id").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load links by id: %w", err)
	}
	return links, nil
}

// SaveAll inserts links without id and updates the others. The returned
// slice carries the generated ids.
func (r *InstanceLinkRepository) SaveAll(ctx context.Context, links []models.InstanceAuthorityLink) ([]models.InstanceAuthorityLink, error) {
	if len(links) == 0 {
		return nil, nil
	}
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	saved := make([]models.InstanceAuthorityLink, len(links))
	db := r.store.conn(ctx)
	for i, link := range links {
		link.TenantID = tenantID
		if link.ID == 0 {
			err = db.Create(&link).Error
		} else {
			err = db.Save(&link).Error
		}
		if err != nil {
			return nil, fmt.Errorf("save link of instance %s: %w", link.InstanceID, err)
		}
		saved[i] = link
	}
	return saved, nil
}

// DeleteAllInBatch removes the given links with a single statement.
func (r *InstanceLinkRepository) DeleteAllInBatch(ctx context.Context, links []models.InstanceAuthorityLink) error {
	if len(links) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	if err := r.store.scoped(ctx).Where("id IN ?", ids).Delete(&models.InstanceAuthorityLink{}).Error; err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	return nil
}

// CountByAuthorityIDs returns the number of links per authority. Authorities
// without links are absent from the result.
func (r *InstanceLinkRepository) CountByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		AuthorityID uuid.UUID
		Total       int64
	}
	err := r.store.scoped(ctx).Model(&models.InstanceAuthorityLink{}).
		Select("authority_id, count(*) AS total").
		Where("authority_id IN ?", ids).
		Group("authority_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count links by authority: %w", err)
	}
	for _, row := range rows {
		counts[row.AuthorityID] = row.Total
	}
	return counts, nil
}

// FindStats returns up to limit links matching the query, newest first.
func (r *InstanceLinkRepository) FindStats(ctx context.Context, q models.LinkStatsQuery, limit int) ([]models.InstanceAuthorityLink, error) {
	db := r.store.scoped(ctx)
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.From != nil {
		db = db.Where("updated_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("updated_at <= ?", *q.To)
	}
	var links []models.InstanceAuthorityLink
	if err := db.Order("updated_at DESC").Order("id DESC").Limit(limit).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load link stats: %w", err)
	}
	return links, nil
}

// DeleteByAuthorityIDs removes every link to the given authorities.
func (r *InstanceLinkRepository) DeleteByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.store.scoped(ctx).Where("authority_id IN ?", ids).Delete(&models.InstanceAuthorityLink{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete links by authority: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateStatusByAuthorityIDs sets status and clears the error cause of every
// link to the given authorities.
func (r *InstanceLinkRepository) UpdateStatusByAuthorityIDs(ctx context.Context, ids []uuid.UUID, status models.LinkStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.store.scoped(ctx).Model(&models.InstanceAuthorityLink{}).
		Where("authority_id IN ?", ids).
		Updates(map[string]any{"status": status, "error_cause": nil})
	if res.Error != nil {
		return 0, fmt.Errorf("update link status by authority: %w", res.Error)
	}
	return res.RowsAffected, nil
}
