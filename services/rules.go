package services

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"entity-links/models"
	"entity-links/tenant"

	"go.uber.org/zap"
)

// RuleRepository is the persistence the rule service needs.
type RuleRepository interface {
	FindAll(ctx context.Context) ([]models.LinkingRule, error)
	FindByID(ctx context.Context, id int) (models.LinkingRule, error)
	Update(ctx context.Context, rule models.LinkingRule, expectedVersion int) (models.LinkingRule, error)
	Seed(ctx context.Context, rules []models.LinkingRule) (int, error)
}

// RuleService serves linking rules from a per-tenant cache. Any patch
// flushes the whole cache entry of the tenant before it returns.
type RuleService struct {
	repo   RuleRepository
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string][]models.LinkingRule
	// generation is bumped on invalidation so a load that raced with a
	// patch does not repopulate the cache with stale rules.
	generation map[string]uint64
}

func NewRuleService(repo RuleRepository, logger *zap.Logger) *RuleService {
	return &RuleService{
		repo:       repo,
		logger:     logger,
		cache:      map[string][]models.LinkingRule{},
		generation: map[string]uint64{},
	}
}

// Rules returns all rules of the tenant ordered by id.
func (s *RuleService) Rules(ctx context.Context) ([]models.LinkingRule, error) {
	tenantID := tenant.From(ctx)

	s.mu.RLock()
	rules, ok := s.cache[tenantID]
	gen := s.generation[tenantID]
	s.mu.RUnlock()
	if ok {
		return slices.Clone(rules), nil
	}

	loaded, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.generation[tenantID] == gen {
		s.cache[tenantID] = loaded
	}
	s.mu.Unlock()
	s.logger.Debug("Linking rules loaded", zap.String("tenant", tenantID), zap.Int("rules", len(loaded)))
	return slices.Clone(loaded), nil
}

// RulesFor returns the rules targeting the given authority field.
func (s *RuleService) RulesFor(ctx context.Context, authorityField string) ([]models.LinkingRule, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.LinkingRule
	for _, r := range rules {
		if r.AuthorityField == authorityField {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rule returns one rule or a NotFoundError.
func (s *RuleService) Rule(ctx context.Context, id int) (models.LinkingRule, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return models.LinkingRule{}, err
	}
	for _, r := range rules {
		if r.ID == id {
			return r, nil
		}
	}
	return models.LinkingRule{}, &models.NotFoundError{Entity: "linking rule", IDs: []string{strconv.Itoa(id)}}
}

// Patch validates and applies a partial update to rule id.
func (s *RuleService) Patch(ctx context.Context, id int, patch models.LinkingRulePatch) (models.LinkingRule, error) {
	tenantID := tenant.From(ctx)
	log := s.logger.With(zap.String("tenant", tenantID), zap.Int("ruleId", id))

	stored, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.LinkingRule{}, err
	}
	if err := ValidateRulePatch(id, stored, patch); err != nil {
		log.Warn("Rejected linking rule patch", zap.Error(err))
		return models.LinkingRule{}, err
	}

	expected := stored.Version
	if patch.Version != nil {
		if *patch.Version != stored.Version {
			return models.LinkingRule{}, &models.OptimisticLockError{
				Entity:           "linking rule",
				ID:               strconv.Itoa(id),
				StoredVersion:    stored.Version,
				RequestedVersion: *patch.Version,
			}
		}
		expected = *patch.Version
	}

	updated, err := s.repo.Update(ctx, patch.Merge(stored), expected)
	if err != nil {
		return models.LinkingRule{}, err
	}
	s.Invalidate(tenantID)
	log.Info("Linking rule patched",
		zap.Bool("autoLinkingEnabled", updated.AutoLinkingEnabled),
		zap.String("authoritySubfields", updated.AuthoritySubfields))
	return updated, nil
}

// Seed installs the default rules for the tenant of ctx when it has none.
func (s *RuleService) Seed(ctx context.Context) (int, error) {
	n, err := s.repo.Seed(ctx, models.DefaultLinkingRules())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Invalidate(tenant.From(ctx))
	}
	return n, nil
}

// Invalidate drops the cached rules of a tenant.
func (s *RuleService) Invalidate(tenantID string) {
	s.mu.Lock()
	delete(s.cache, tenantID)
	s.generation[tenantID]++
	s.mu.Unlock()
}
