package services

import (
	"context"
	"testing"

	"entity-links/models"
	"entity-links/tenant"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memAuthorityRepo struct {
	byTenant map[string][]models.Authority
	saved    int
}

func (m *memAuthorityRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Authority, error) {
	var out []models.Authority
	for _, a := range m.byTenant[tenant.From(ctx)] {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (m *memAuthorityRepo) FindByNaturalIDs(ctx context.Context, naturalIDs []string) ([]models.Authority, error) {
	var out []models.Authority
	for _, a := range m.byTenant[tenant.From(ctx)] {
		for _, n := range naturalIDs {
			if a.NaturalID == n {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (m *memAuthorityRepo) SaveAll(ctx context.Context, authorities []models.Authority) error {
	if len(authorities) == 0 {
		return nil
	}
	m.saved += len(authorities)
	t := tenant.From(ctx)
	m.byTenant[t] = append(m.byTenant[t], authorities...)
	return nil
}

type fakeSearcher struct {
	byTenant map[string][]models.Authority
	calls    []string
}

func (f *fakeSearcher) SearchByNaturalIDs(_ context.Context, tenantID string, naturalIDs []string) ([]models.Authority, error) {
	f.calls = append(f.calls, tenantID)
	var out []models.Authority
	for _, a := range f.byTenant[tenantID] {
		for _, n := range naturalIDs {
			if a.NaturalID == n {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *fakeSearcher) SearchByIDs(_ context.Context, tenantID string, ids []uuid.UUID) ([]models.Authority, error) {
	f.calls = append(f.calls, tenantID)
	var out []models.Authority
	for _, a := range f.byTenant[tenantID] {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *fakeSearcher) Name() string { return "fake" }

func TestAuthorityService_FallbackOrder(t *testing.T) {
	local := models.Authority{ID: uuid.New(), NaturalID: "n1"}
	indexed := models.Authority{ID: uuid.New(), NaturalID: "n2"}
	shared := models.Authority{ID: uuid.New(), NaturalID: "sh3"}

	repo := &memAuthorityRepo{byTenant: map[string][]models.Authority{"member": {local}}}
	searcher := &fakeSearcher{byTenant: map[string][]models.Authority{
		"member":  {indexed},
		"central": {shared},
	}}
	svc := NewAuthorityService(repo, searcher, "central", zap.NewNop())
	ctx := tenant.With(context.Background(), "member")

	got, err := svc.Resolve(ctx, models.SearchByNaturalID, []string{"n1", "n2", "sh3", "n404"})
	require.NoError(t, err)
	assert.Equal(t, local.ID, got["n1"][0].ID)
	assert.Equal(t, indexed.ID, got["n2"][0].ID)
	assert.Equal(t, shared.ID, got["sh3"][0].ID)
	assert.NotContains(t, got, "n404")
	assert.Equal(t, []string{"member", "central"}, searcher.calls)

	assert.Len(t, repo.byTenant["member"], 2, "indexed authority cached locally")
	assert.Len(t, repo.byTenant["central"], 1, "shared authority cached for the central tenant")

	searcher.calls = nil
	_, err = svc.Resolve(ctx, models.SearchByNaturalID, []string{"n2", "sh3"})
	require.NoError(t, err)
	assert.Empty(t, searcher.calls, "second lookup is served locally")
}

func TestAuthorityService_DuplicateNaturalIDs(t *testing.T) {
	repo := &memAuthorityRepo{byTenant: map[string][]models.Authority{"diku": {
		{ID: uuid.New(), NaturalID: "n1"},
		{ID: uuid.New(), NaturalID: "n1"},
		{ID: uuid.New(), NaturalID: "n2", Deleted: true},
	}}}
	svc := NewAuthorityService(repo, nil, "", zap.NewNop())

	got, err := svc.Resolve(tenant.With(context.Background(), "diku"), models.SearchByNaturalID, []string{"n1", "n2"})
	require.NoError(t, err)
	assert.Len(t, got["n1"], 2)
	assert.NotContains(t, got, "n2")
}

func TestAuthorityService_ExistingAndMembership(t *testing.T) {
	a := models.Authority{ID: uuid.New(), NaturalID: "n1"}
	repo := &memAuthorityRepo{byTenant: map[string][]models.Authority{"central": {a}}}
	svc := NewAuthorityService(repo, nil, "central", zap.NewNop())

	member := tenant.With(context.Background(), "member")
	assert.True(t, svc.IsConsortiumMember(member))
	assert.False(t, svc.IsConsortiumMember(tenant.With(context.Background(), "central")))

	missing := uuid.New()
	found, err := svc.Existing(member, []uuid.UUID{a.ID, missing})
	require.NoError(t, err)
	assert.Contains(t, found, a.ID)
	assert.NotContains(t, found, missing)
}
