package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"entity-links/models"
	"entity-links/tenant"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewStore(db)
	require.NoError(t, store.Migrate())
	return store
}

func tenantCtx(id string) context.Context {
	return tenant.With(context.Background(), id)
}

func TestLinkingRuleRepository_SeedOnce(t *testing.T) {
	repo := NewLinkingRuleRepository(newTestStore(t))
	ctx := tenantCtx("diku")

	n, err := repo.Seed(ctx, models.DefaultLinkingRules())
	require.NoError(t, err)
	assert.Equal(t, 22, n)

	n, err = repo.Seed(ctx, models.DefaultLinkingRules())
	require.NoError(t, err)
	assert.Zero(t, n)

	rules, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 22)
	assert.Equal(t, 1, rules[0].ID)
	assert.Equal(t, 22, rules[21].ID)
	assert.Equal(t, "a", rules[4].TargetCode("t"))

	other, err := repo.FindAll(tenantCtx("other"))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLinkingRuleRepository_FindAllAndByID(t *testing.T) {
	repo := NewLinkingRuleRepository(newTestStore(t))
	ctx := tenantCtx("diku")
	_, err := repo.Seed(ctx, models.DefaultLinkingRules())
	require.NoError(t, err)

	rules, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 22)
	for i, r := range rules {
		assert.Equal(t, i+1, r.ID, "rules are ordered by id")
	}

	rule, err := repo.FindByID(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, "600", rule.BibField)

	_, err = repo.FindByID(ctx, 99)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestLinkingRuleRepository_UpdateOptimistic(t *testing.T) {
	repo := NewLinkingRuleRepository(newTestStore(t))
	ctx := tenantCtx("diku")
	_, err := repo.Seed(ctx, models.DefaultLinkingRules())
	require.NoError(t, err)

	rule, err := repo.FindByID(ctx, 8)
	require.NoError(t, err)
	rule.AutoLinkingEnabled = false
	rule.AuthoritySubfields = "ab"

	updated, err := repo.Update(ctx, rule, rule.Version)
	require.NoError(t, err)
	assert.False(t, updated.AutoLinkingEnabled)
	assert.Equal(t, "ab", updated.AuthoritySubfields)
	assert.Equal(t, rule.Version+1, updated.Version)

	_, err = repo.Update(ctx, rule, rule.Version)
	var lockErr *models.OptimisticLockError
	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, rule.Version+1, lockErr.StoredVersion)
	assert.Equal(t, rule.Version, lockErr.RequestedVersion)
}

func newLink(instanceID, authorityID uuid.UUID, tag string, ruleID int) models.InstanceAuthorityLink {
	return models.InstanceAuthorityLink{
		InstanceID:         instanceID,
		AuthorityID:        authorityID,
		AuthorityNaturalID: "n" + tag,
		BibRecordTag:       tag,
		BibRecordSubfields: "a",
		LinkingRuleID:      ruleID,
		Status:             models.LinkStatusActual,
	}
}

func TestInstanceLinkRepository_SaveFindDelete(t *testing.T) {
	repo := NewInstanceLinkRepository(newTestStore(t))
	ctx := tenantCtx("diku")
	instanceID := uuid.New()

	saved, err := repo.SaveAll(ctx, []models.InstanceAuthorityLink{
		newLink(instanceID, uuid.New(), "100", 1),
		newLink(instanceID, uuid.New(), "600", 8),
		newLink(uuid.New(), uuid.New(), "700", 15),
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)
	for _, l := range saved {
		assert.NotZero(t, l.ID)
		assert.Equal(t, "diku", l.TenantID)
	}

	links, err := repo.FindByInstanceID(ctx, instanceID)
	require.NoError(t, err)
	require.Len(t, links, 2)

	links[0].BibRecordSubfields = "abcd"
	_, err = repo.SaveAll(ctx, links[:1])
	require.NoError(t, err)

	byID, err := repo.FindAllByID(ctx, []int64{links[0].ID, 12345})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "abcd", byID[0].BibRecordSubfields)

	require.NoError(t, repo.DeleteAllInBatch(ctx, links))
	links, err = repo.FindByInstanceID(ctx, instanceID)
	require.NoError(t, err)
	assert.Empty(t, links)

	foreign, err := repo.FindAllByID(tenantCtx("other"), []int64{saved[2].ID})
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestInstanceLinkRepository_CountAndAuthorityBatches(t *testing.T) {
	repo := NewInstanceLinkRepository(newTestStore(t))
	ctx := tenantCtx("diku")
	authA, authB, authC := uuid.New(), uuid.New(), uuid.New()

	_, err := repo.SaveAll(ctx, []models.InstanceAuthorityLink{
		newLink(uuid.New(), authA, "100", 1),
		newLink(uuid.New(), authA, "100", 1),
		newLink(uuid.New(), authB, "600", 8),
	})
	require.NoError(t, err)

	counts, err := repo.CountByAuthorityIDs(ctx, []uuid.UUID{authA, authB, authC})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[authA])
	assert.Equal(t, int64(1), counts[authB])
	_, ok := counts[authC]
	assert.False(t, ok)

	n, err := repo.UpdateStatusByAuthorityIDs(ctx, []uuid.UUID{authA}, models.LinkStatusError)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.DeleteByAuthorityIDs(ctx, []uuid.UUID{authA})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counts, err = repo.CountByAuthorityIDs(ctx, []uuid.UUID{authA, authB})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int64{authB: 1}, counts)
}

func TestInstanceLinkRepository_FindStats(t *testing.T) {
	repo := NewInstanceLinkRepository(newTestStore(t))
	ctx := tenantCtx("diku")

	for i := 0; i < 3; i++ {
		l := newLink(uuid.New(), uuid.New(), "100", 1)
		if i == 1 {
			l.Status = models.LinkStatusError
		}
		_, err := repo.SaveAll(ctx, []models.InstanceAuthorityLink{l})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	all, err := repo.FindStats(ctx, models.LinkStatsQuery{}, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.False(t, all[0].UpdatedAt.Before(all[1].UpdatedAt))

	status := models.LinkStatusError
	failed, err := repo.FindStats(ctx, models.LinkStatsQuery{Status: &status}, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	limited, err := repo.FindStats(ctx, models.LinkStatsQuery{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	repo := NewInstanceLinkRepository(store)
	ctx := tenantCtx("diku")
	instanceID := uuid.New()

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(ctx context.Context) error {
		if _, err := repo.SaveAll(ctx, []models.InstanceAuthorityLink{newLink(instanceID, uuid.New(), "100", 1)}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	links, err := repo.FindByInstanceID(ctx, instanceID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestAuthorityRepository_Upsert(t *testing.T) {
	repo := NewAuthorityRepository(newTestStore(t))
	ctx := tenantCtx("diku")
	id := uuid.New()

	require.NoError(t, repo.SaveAll(ctx, []models.Authority{{
		ID:        id,
		NaturalID: "n12345",
		Fields:    models.MustJSON([]models.Field{{Tag: "100", Subfields: []models.Subfield{{Code: "a", Value: "Doe"}}}}),
	}}))
	require.NoError(t, repo.SaveAll(ctx, []models.Authority{{ID: id, NaturalID: "n12345", SourceFileBaseURL: "http://id.loc.gov/"}}))

	found, err := repo.FindByNaturalIDs(ctx, []string{"n12345", "n0"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "http://id.loc.gov/", found[0].SourceFileBaseURL)

	found, err = repo.FindByIDs(ctx, []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = repo.FindByIDs(tenantCtx("central"), []uuid.UUID{id})
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.Error(t, repo.SaveAll(context.Background(), []models.Authority{{ID: uuid.New()}}))
}
