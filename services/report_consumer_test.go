package services

import (
	"context"
	"errors"
	"testing"

	"entity-links/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInbox struct {
	keys    []string
	batches map[string][]models.LinkUpdateReport
	broken  map[string]bool
	acked   []string
}

func (f *fakeInbox) Pending(context.Context) ([]string, error) {
	var keys []string
	for _, k := range f.keys {
		acked := false
		for _, a := range f.acked {
			if a == k {
				acked = true
			}
		}
		if !acked {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeInbox) Read(_ context.Context, key string) ([]models.LinkUpdateReport, error) {
	if f.broken[key] {
		return nil, errors.New("decode failed")
	}
	return f.batches[key], nil
}

func (f *fakeInbox) Ack(_ context.Context, key string) error {
	f.acked = append(f.acked, key)
	return nil
}

func TestReportConsumer_AcksOnlyAppliedBatches(t *testing.T) {
	repo := newMemLinkRepo()
	repo.failOn = "broken-tenant"
	ids := seedLinks(t, repo, "diku", 1)

	inbox := &fakeInbox{
		keys: []string{"a.json", "b.json", "c.json"},
		batches: map[string][]models.LinkUpdateReport{
			"a.json": {{Tenant: "diku", JobID: uuid.New(), Status: models.ReportStatusSuccess, LinkIDs: ids}},
			"c.json": {{Tenant: "broken-tenant", JobID: uuid.New(), Status: models.ReportStatusSuccess, LinkIDs: []int64{9}}},
		},
		broken: map[string]bool{"b.json": true},
	}
	consumer := NewReportConsumer(inbox, NewReportService(repo, directTx{}, nil, zap.NewNop()), zap.NewNop())

	acked, err := consumer.Poll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, acked)
	assert.Equal(t, []string{"a.json"}, inbox.acked)
	assert.Equal(t, models.LinkStatusActual, linkByID(t, repo, "diku", ids[0]).Status)

	pending, err := inbox.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b.json", "c.json"}, pending, "failed batches stay for the next poll")
}

func TestReportConsumer_InvalidBatchStaysPending(t *testing.T) {
	repo := newMemLinkRepo()
	ids := seedLinks(t, repo, "diku", 1)

	inbox := &fakeInbox{
		keys: []string{"bogus.json", "untenanted.json"},
		batches: map[string][]models.LinkUpdateReport{
			"bogus.json":      {{Tenant: "diku", JobID: uuid.New(), Status: "BOGUS", LinkIDs: ids}},
			"untenanted.json": {{JobID: uuid.New(), Status: models.ReportStatusSuccess, LinkIDs: ids}},
		},
	}
	consumer := NewReportConsumer(inbox, NewReportService(repo, directTx{}, nil, zap.NewNop()), zap.NewNop())

	acked, err := consumer.Poll(context.Background())
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, acked)
	assert.Empty(t, inbox.acked)
	assert.Equal(t, models.LinkStatusNew, linkByID(t, repo, "diku", ids[0]).Status)
	assert.Zero(t, repo.writes)
}
