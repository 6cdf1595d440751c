package services

import (
	"context"
	"fmt"

	"entity-links/models"
	"entity-links/providers"
	"entity-links/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthorityRepository is the local authority projection.
type AuthorityRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Authority, error)
	FindByNaturalIDs(ctx context.Context, naturalIDs []string) ([]models.Authority, error)
	SaveAll(ctx context.Context, authorities []models.Authority) error
}

// AuthorityService resolves authorities from the local store and then from
// the search index. Each source is asked for the current tenant first and
// for the central tenant of a consortium second. Authorities fetched from
// the index are stored locally.
type AuthorityService struct {
	repo          AuthorityRepository
	searcher      providers.AuthoritySearcher
	centralTenant string
	logger        *zap.Logger
}

// NewAuthorityService creates the service. searcher may be nil and
// centralTenant may be empty.
func NewAuthorityService(repo AuthorityRepository, searcher providers.AuthoritySearcher, centralTenant string, logger *zap.Logger) *AuthorityService {
	return &AuthorityService{repo: repo, searcher: searcher, centralTenant: centralTenant, logger: logger}
}

// Resolve maps every identifier to the candidates carrying it. Natural ids
// are expected in normalized form, ids as canonical UUID strings.
// Identifiers without candidates are absent from the result.
func (s *AuthorityService) Resolve(ctx context.Context, param models.AuthoritySearchParameter, ids []string) (map[string][]models.AuthorityCandidate, error) {
	found, err := s.lookup(ctx, param, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.AuthorityCandidate, len(found))
	for key, authorities := range found {
		for _, a := range authorities {
			out[key] = append(out[key], a.Candidate())
		}
	}
	return out, nil
}

// Existing returns the authorities among ids that exist locally or in the
// central tenant.
func (s *AuthorityService) Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Authority, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	found, err := s.lookup(ctx, models.SearchByID, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Authority, len(found))
	for _, authorities := range found {
		for _, a := range authorities {
			out[a.ID] = a
		}
	}
	return out, nil
}

// IsConsortiumMember reports whether lookups for ctx fall back to a central tenant.
func (s *AuthorityService) IsConsortiumMember(ctx context.Context) bool {
	return s.centralTenant != "" && s.centralTenant != tenant.From(ctx)
}

// CentralTenant returns the configured central tenant.
func (s *AuthorityService) CentralTenant() string {
	return s.centralTenant
}

func (s *AuthorityService) tenants(ctx context.Context) []string {
	tenants := []string{tenant.From(ctx)}
	if s.IsConsortiumMember(ctx) {
		tenants = append(tenants, s.centralTenant)
	}
	return tenants
}

func (s *AuthorityService) lookup(ctx context.Context, param models.AuthoritySearchParameter, ids []string) (map[string][]models.Authority, error) {
	found := map[string][]models.Authority{}
	missing := dedupe(ids)
	tenants := s.tenants(ctx)

	for _, tenantID := range tenants {
		if len(missing) == 0 {
			return found, nil
		}
		local, err := s.findLocal(tenant.With(ctx, tenantID), param, missing)
		if err != nil {
			return nil, err
		}
		collectAuthorities(found, param, local)
		missing = missingKeys(missing, found)
	}
	if s.searcher == nil {
		return found, nil
	}

	for _, tenantID := range tenants {
		if len(missing) == 0 {
			break
		}
		tctx := tenant.With(ctx, tenantID)
		fetched, err := s.search(tctx, tenantID, param, missing)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SaveAll(tctx, fetched); err != nil {
			return nil, err
		}
		collectAuthorities(found, param, fetched)
		missing = missingKeys(missing, found)
		s.logger.Debug("Authorities fetched from search index",
			zap.String("tenant", tenantID), zap.Int("fetched", len(fetched)), zap.Int("missing", len(missing)))
	}
	return found, nil
}

func (s *AuthorityService) findLocal(ctx context.Context, param models.AuthoritySearchParameter, keys []string) ([]models.Authority, error) {
	if param == models.SearchByID {
		return s.repo.FindByIDs(ctx, parseIDs(keys))
	}
	return s.repo.FindByNaturalIDs(ctx, keys)
}

func (s *AuthorityService) search(ctx context.Context, tenantID string, param models.AuthoritySearchParameter, keys []string) ([]models.Authority, error) {
	var (
		authorities []models.Authority
		err         error
	)
	if param == models.SearchByID {
		authorities, err = s.searcher.SearchByIDs(ctx, tenantID, parseIDs(keys))
	} else {
		authorities, err = s.searcher.SearchByNaturalIDs(ctx, tenantID, keys)
	}
	if err != nil {
		return nil, fmt.Errorf("search authorities via %s: %w", s.searcher.Name(), err)
	}
	return authorities, nil
}

func authorityKey(param models.AuthoritySearchParameter, a models.Authority) string {
	if param == models.SearchByID {
		return a.ID.String()
	}
	return NormalizeNaturalID(a.NaturalID)
}

func collectAuthorities(found map[string][]models.Authority, param models.AuthoritySearchParameter, authorities []models.Authority) {
	for _, a := range authorities {
		if a.Deleted {
			continue
		}
		key := authorityKey(param, a)
		dup := false
		for _, existing := range found[key] {
			if existing.ID == a.ID {
				dup = true
				break
			}
		}
		if !dup {
			found[key] = append(found[key], a)
		}
	}
}

func missingKeys(keys []string, found map[string][]models.Authority) []string {
	var missing []string
	for _, k := range keys {
		if len(found[k]) == 0 {
			missing = append(missing, k)
		}
	}
	return missing
}

func parseIDs(keys []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(keys))
	for _, k := range keys {
		if id, err := uuid.Parse(k); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
