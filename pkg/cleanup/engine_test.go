package cleanup

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primus-bench/orchestrator/pkg/dbtest"
	"github.com/primus-bench/orchestrator/pkg/kubefake"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/store"
)

func newEngine(t *testing.T, adapter *kubefake.Adapter) (*Engine, *store.CampaignStore, *store.EngineReleaseStore) {
	db := dbtest.Open(t)
	campaigns := store.NewCampaignStore(db)
	releases := store.NewEngineReleaseStore(db)
	return New(adapter, releases, campaigns), campaigns, releases
}

func TestCleanupCampaign_DeletesNonSucceededJobs(t *testing.T) {
	adapter := &kubefake.Adapter{}
	e, _, _ := newEngine(t, adapter)

	campaign := &model.Campaign{
		ID:         uuid.New(),
		SkipEngine: true,
		Jobs: model.JobListJSON{
			{Name: "bench-1", Namespace: "ns", TerminalState: model.JobTerminalFailed},
			{Name: "bench-2", Namespace: "ns", TerminalState: model.JobTerminalSucceeded},
		},
	}

	outcome := e.CleanupCampaign(context.Background(), campaign, "campaign failed")

	assert.True(t, outcome.Attempted)
	assert.True(t, outcome.Successful)
	assert.Contains(t, adapter.Calls, "DeleteJob")
	deleteCalls := 0
	for _, c := range adapter.Calls {
		if c == "DeleteJob" {
			deleteCalls++
		}
	}
	assert.Equal(t, 1, deleteCalls, "the succeeded job must not be deleted")
}

func TestCleanupCampaign_Idempotent(t *testing.T) {
	adapter := &kubefake.Adapter{}
	e, _, _ := newEngine(t, adapter)

	campaign := &model.Campaign{
		ID:                uuid.New(),
		SkipEngine:        true,
		CleanupAttempted:  true,
		CleanupSuccessful: true,
	}

	outcome := e.CleanupCampaign(context.Background(), campaign, "already cleaned")

	assert.True(t, outcome.Successful)
	assert.Empty(t, adapter.Calls, "a fully cleaned-up campaign must not touch the cluster again")
}

func TestCleanupCampaign_TearsDownUnsharedEngine(t *testing.T) {
	adapter := &kubefake.Adapter{}
	e, campaigns, releases := newEngine(t, adapter)
	ctx := context.Background()

	release := &model.EngineRelease{
		ID:                uuid.New(),
		ReleaseName:       "engine-demo",
		Namespace:         "default",
		Phase:             model.EngineReleaseRunning,
		OwnedByController: true,
	}
	require.NoError(t, releases.Insert(ctx, release))

	campaign := &model.Campaign{
		ID:              uuid.New(),
		EngineReleaseID: &release.ID,
	}
	require.NoError(t, campaigns.Insert(ctx, campaign))

	outcome := e.CleanupCampaign(ctx, campaign, "campaign completed with no benchmarks left")

	assert.True(t, outcome.Successful)
	assert.Contains(t, adapter.Calls, "UninstallRelease")

	got, err := releases.Get(ctx, release.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EngineReleaseCleanedUp, got.Phase)
}

func TestCleanupCampaign_SkipsEngineTeardownWhenShared(t *testing.T) {
	adapter := &kubefake.Adapter{}
	e, campaigns, releases := newEngine(t, adapter)
	ctx := context.Background()

	release := &model.EngineRelease{ID: uuid.New(), ReleaseName: "engine-shared", OwnedByController: true}
	require.NoError(t, releases.Insert(ctx, release))

	other := &model.Campaign{ID: uuid.New(), Phase: model.PhaseProcessing, EngineReleaseID: &release.ID}
	require.NoError(t, campaigns.Insert(ctx, other))

	campaign := &model.Campaign{ID: uuid.New(), EngineReleaseID: &release.ID}
	require.NoError(t, campaigns.Insert(ctx, campaign))

	e.CleanupCampaign(ctx, campaign, "this campaign is done but another still uses the engine")

	assert.NotContains(t, adapter.Calls, "UninstallRelease")
}

func TestTeardownRelease_LeavesUnownedReleaseInPlace(t *testing.T) {
	adapter := &kubefake.Adapter{}
	e, _, releases := newEngine(t, adapter)
	ctx := context.Background()

	release := &model.EngineRelease{ID: uuid.New(), ReleaseName: "pre-existing", OwnedByController: false}
	require.NoError(t, releases.Insert(ctx, release))

	e.TeardownRelease(ctx, release, nil)

	assert.NotContains(t, adapter.Calls, "UninstallRelease")
}

func TestOrphanMatches(t *testing.T) {
	assert.True(t, orphanMatches("abcd1234-bench", "abcd1234", "", ""))
	assert.True(t, orphanMatches("benchmark-whatever", "zzzzzzzz", "", ""))
	assert.True(t, orphanMatches("job-xyz", "zzzzzzzz", "campaign: abc-123", "abc-123"))
	assert.False(t, orphanMatches("unrelated-job", "zzzzzzzz", "image: vllm", "abc-123"))
}
