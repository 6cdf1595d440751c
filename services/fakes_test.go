package services

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"entity-links/models"
	"entity-links/tenant"

	"github.com/google/uuid"
)

type fakeRuleRepo struct {
	mu        sync.Mutex
	rules     map[int]models.LinkingRule
	findAll   int
	updates   int
	updateErr error
}

func newFakeRuleRepo(rules ...models.LinkingRule) *fakeRuleRepo {
	r := &fakeRuleRepo{rules: map[int]models.LinkingRule{}}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *fakeRuleRepo) FindAll(context.Context) ([]models.LinkingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findAll++
	out := make([]models.LinkingRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRuleRepo) FindByID(_ context.Context, id int) (models.LinkingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return models.LinkingRule{}, &models.NotFoundError{Entity: "linking rule", IDs: []string{strconv.Itoa(id)}}
	}
	return rule, nil
}

func (r *fakeRuleRepo) Update(_ context.Context, rule models.LinkingRule, expected int) (models.LinkingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateErr != nil {
		return models.LinkingRule{}, r.updateErr
	}
	stored := r.rules[rule.ID]
	if stored.Version != expected {
		return models.LinkingRule{}, &models.OptimisticLockError{Entity: "linking rule", ID: strconv.Itoa(rule.ID), StoredVersion: stored.Version, RequestedVersion: expected}
	}
	rule.Version = expected + 1
	r.rules[rule.ID] = rule
	return rule, nil
}

func (r *fakeRuleRepo) Seed(_ context.Context, rules []models.LinkingRule) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rules) > 0 {
		return 0, nil
	}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return len(rules), nil
}

type staticRules []models.LinkingRule

func (s staticRules) Rules(context.Context) ([]models.LinkingRule, error) {
	return s, nil
}

type fakeResolver struct {
	candidates map[string][]models.AuthorityCandidate
	calls      int
	lastIDs    []string
}

func (f *fakeResolver) Resolve(_ context.Context, _ models.AuthoritySearchParameter, ids []string) (map[string][]models.AuthorityCandidate, error) {
	f.calls++
	f.lastIDs = ids
	out := map[string][]models.AuthorityCandidate{}
	for _, id := range ids {
		if c, ok := f.candidates[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// memLinkRepo keeps links per tenant and counts reads and writes.
type memLinkRepo struct {
	nextID int64
	links  map[string]map[int64]models.InstanceAuthorityLink
	reads  int
	writes int
	failOn string
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{links: map[string]map[int64]models.InstanceAuthorityLink{}}
}

func (m *memLinkRepo) tenantLinks(ctx context.Context) map[int64]models.InstanceAuthorityLink {
	t := tenant.From(ctx)
	if m.links[t] == nil {
		m.links[t] = map[int64]models.InstanceAuthorityLink{}
	}
	return m.links[t]
}

func (m *memLinkRepo) sorted(ctx context.Context, keep func(models.InstanceAuthorityLink) bool) []models.InstanceAuthorityLink {
	var out []models.InstanceAuthorityLink
	for _, l := range m.tenantLinks(ctx) {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memLinkRepo) FindByInstanceID(ctx context.Context, instanceID uuid.UUID) ([]models.InstanceAuthorityLink, error) {
	m.reads++
	return m.sorted(ctx, func(l models.InstanceAuthorityLink) bool { return l.InstanceID == instanceID }), nil
}

func (m *memLinkRepo) FindAllByID(ctx context.Context, ids []int64) ([]models.InstanceAuthorityLink, error) {
	m.reads++
	if m.failOn == tenant.From(ctx) {
		return nil, errFake
	}
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.sorted(ctx, func(l models.InstanceAuthorityLink) bool { return want[l.ID] }), nil
}

func (m *memLinkRepo) SaveAll(ctx context.Context, links []models.InstanceAuthorityLink) ([]models.InstanceAuthorityLink, error) {
	if len(links) == 0 {
		return nil, nil
	}
	m.writes++
	stored := m.tenantLinks(ctx)
	out := make([]models.InstanceAuthorityLink, len(links))
	for i, l := range links {
		if l.ID == 0 {
			m.nextID++
			l.ID = m.nextID
		}
		l.TenantID = tenant.From(ctx)
		stored[l.ID] = l
		out[i] = l
	}
	return out, nil
}

func (m *memLinkRepo) DeleteAllInBatch(ctx context.Context, links []models.InstanceAuthorityLink) error {
	if len(links) == 0 {
		return nil
	}
	m.writes++
	stored := m.tenantLinks(ctx)
	for _, l := range links {
		delete(stored, l.ID)
	}
	return nil
}

func (m *memLinkRepo) CountByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	counts := map[uuid.UUID]int64{}
	for _, l := range m.tenantLinks(ctx) {
		if want[l.AuthorityID] {
			counts[l.AuthorityID]++
		}
	}
	return counts, nil
}

func (m *memLinkRepo) FindStats(ctx context.Context, q models.LinkStatsQuery, limit int) ([]models.InstanceAuthorityLink, error) {
	out := m.sorted(ctx, func(l models.InstanceAuthorityLink) bool {
		return q.Status == nil || l.Status == *q.Status
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLinkRepo) DeleteByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	stored := m.tenantLinks(ctx)
	for id, l := range stored {
		for _, a := range ids {
			if l.AuthorityID == a {
				delete(stored, id)
				n++
			}
		}
	}
	return n, nil
}

func (m *memLinkRepo) UpdateStatusByAuthorityIDs(ctx context.Context, ids []uuid.UUID, status models.LinkStatus) (int64, error) {
	var n int64
	stored := m.tenantLinks(ctx)
	for id, l := range stored {
		for _, a := range ids {
			if l.AuthorityID == a {
				l.Status = status
				l.ErrorCause = nil
				stored[id] = l
				n++
			}
		}
	}
	return n, nil
}

type directTx struct{}

func (directTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errFake = fakeErr("storage unavailable")
