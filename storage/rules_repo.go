package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"entity-links/models"

	"gorm.io/gorm"
)

// LinkingRuleRepository persists linking rules per tenant.
type LinkingRuleRepository struct {
	store *Store
}

func NewLinkingRuleRepository(store *Store) *LinkingRuleRepository {
	return &LinkingRuleRepository{store: store}
}

// FindAll returns every rule of the tenant ordered by id.
func (r *LinkingRuleRepository) FindAll(ctx context.Context) ([]models.LinkingRule, error) {
	var rules []models.LinkingRule
	if err := r.store.scoped(ctx).Order("id").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("load linking rules: %w", err)
	}
	return rules, nil
}

// FindByID returns the rule or a NotFoundError.
func (r *LinkingRuleRepository) FindByID(ctx context.Context, id int) (models.LinkingRule, error) {
	var rule models.LinkingRule
	err := r.store.scoped(ctx).Where("id = ?", id).Take(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.LinkingRule{}, &models.NotFoundError{Entity: "linking rule", IDs: []string{strconv.Itoa(id)}}
	}
	if err != nil {
		return models.LinkingRule{}, fmt.Errorf("load linking rule %d: %w", id, err)
	}
	return rule, nil
}

// Update writes the mutable fields of rule if the stored version still
// equals expectedVersion and bumps the version.
func (r *LinkingRuleRepository) Update(ctx context.Context, rule models.LinkingRule, expectedVersion int) (models.LinkingRule, error) {
	res := r.store.scoped(ctx).Model(&models.LinkingRule{}).
		Where("id = ? AND version = ?", rule.ID, expectedVersion).
		Updates(map[string]any{
			"auto_linking_enabled": rule.AutoLinkingEnabled,
			"authority_subfields":  rule.AuthoritySubfields,
			"version":              expectedVersion + 1,
		})
	if res.Error != nil {
		return models.LinkingRule{}, fmt.Errorf("update linking rule %d: %w", rule.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		stored, err := r.FindByID(ctx, rule.ID)
		if err != nil {
			return models.LinkingRule{}, err
		}
		return models.LinkingRule{}, &models.OptimisticLockError{
			Entity:           "linking rule",
			ID:               strconv.Itoa(rule.ID),
			StoredVersion:    stored.Version,
			RequestedVersion: expectedVersion,
		}
	}
	return r.FindByID(ctx, rule.ID)
}

// Seed inserts rules for the tenant of ctx if it has none yet and returns
// the number of inserted rows.
func (r *LinkingRuleRepository) Seed(ctx context.Context, rules []models.LinkingRule) (int, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := r.store.scoped(ctx).Model(&models.LinkingRule{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count linking rules: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	seeded := make([]models.LinkingRule, len(rules))
	for i, rule := range rules {
		rule.TenantID = tenantID
		seeded[i] = rule
	}
	if err := r.store.conn(ctx).Create(&seeded).Error; err != nil {
		return 0, fmt.Errorf("seed linking rules: %w", err)
	}
	return len(seeded), nil
}
