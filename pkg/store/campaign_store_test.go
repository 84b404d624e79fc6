package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
	"github.com/primus-bench/orchestrator/pkg/dbtest"
	"github.com/primus-bench/orchestrator/pkg/model"
)

func newCampaign(priority model.Priority) *model.Campaign {
	return &model.Campaign{
		ID:         uuid.New(),
		Priority:   priority,
		Phase:      model.PhasePending,
		Benchmarks: model.BenchmarkListJSON{},
		Jobs:       model.JobListJSON{},
	}
}

func TestCampaignStore_InsertAndGet(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	c := newCampaign(model.PriorityHigh)
	require.NoError(t, s.Insert(ctx, c))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, model.PhasePending, got.Phase)
}

func TestCampaignStore_Get_NotFound(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)

	_, err := s.Get(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestCampaignStore_Update_EnforcesMonotonicPhase(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	c := newCampaign(model.PriorityLow)
	require.NoError(t, s.Insert(ctx, c))

	completed := model.PhaseCompleted
	err := s.Update(ctx, c.ID, CampaignPatch{Phase: &completed})
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindUnrecoverableInternal, kind)

	got, _ := s.Get(ctx, c.ID)
	assert.Equal(t, model.PhasePending, got.Phase)
}

func TestCampaignStore_Update_LegalTransition(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	c := newCampaign(model.PriorityMedium)
	require.NoError(t, s.Insert(ctx, c))

	processing := model.PhaseProcessing
	require.NoError(t, s.Update(ctx, c.ID, CampaignPatch{Phase: &processing}))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseProcessing, got.Phase)
}

func TestCampaignStore_Delete_RequiresForceWhenProcessing(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	c := newCampaign(model.PriorityMedium)
	require.NoError(t, s.Insert(ctx, c))
	processing := model.PhaseProcessing
	require.NoError(t, s.Update(ctx, c.ID, CampaignPatch{Phase: &processing}))

	err := s.Delete(ctx, c.ID, false)
	assert.Error(t, err)

	require.NoError(t, s.Delete(ctx, c.ID, true))
	_, err = s.Get(ctx, c.ID)
	assert.Error(t, err)
}

func TestCampaignStore_AppendJob(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	c := newCampaign(model.PriorityMedium)
	require.NoError(t, s.Insert(ctx, c))

	require.NoError(t, s.AppendJob(ctx, c.ID, model.JobRecord{Name: "bench-1", Namespace: "default"}))
	require.NoError(t, s.AppendJob(ctx, c.ID, model.JobRecord{Name: "bench-2", Namespace: "default"}))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Jobs, 2)
	assert.Equal(t, "bench-1", got.Jobs[0].Name)
	assert.Equal(t, "bench-2", got.Jobs[1].Name)
}

func TestCampaignStore_PendingOrdered_SortsByPriorityThenAge(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	low := newCampaign(model.PriorityLow)
	high := newCampaign(model.PriorityHigh)
	urgent := newCampaign(model.PriorityUrgent)
	medium := newCampaign(model.PriorityMedium)

	for _, c := range []*model.Campaign{low, high, urgent, medium} {
		require.NoError(t, s.Insert(ctx, c))
	}

	ordered, err := s.PendingOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, ordered, 4)
	assert.Equal(t, urgent.ID, ordered[0].ID)
	assert.Equal(t, high.ID, ordered[1].ID)
	assert.Equal(t, medium.ID, ordered[2].ID)
	assert.Equal(t, low.ID, ordered[3].ID)
}

func TestCampaignStore_StatusCounts(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newCampaign(model.PriorityLow)))
	require.NoError(t, s.Insert(ctx, newCampaign(model.PriorityHigh)))

	counts, err := s.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.PhasePending])
}

func TestCampaignStore_SetPriority(t *testing.T) {
	db := dbtest.Open(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	c := newCampaign(model.PriorityLow)
	require.NoError(t, s.Insert(ctx, c))

	require.NoError(t, s.SetPriority(ctx, c.ID, model.PriorityUrgent))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUrgent, got.Priority)
}
