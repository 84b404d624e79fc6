package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primus-bench/orchestrator/pkg/cleanup"
	"github.com/primus-bench/orchestrator/pkg/dbtest"
	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/kubefake"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/readiness"
	"github.com/primus-bench/orchestrator/pkg/reuse"
	"github.com/primus-bench/orchestrator/pkg/store"
)

// fastMonitors builds engine/job monitors whose timeouts are short enough that a
// misbehaving test fails in milliseconds rather than hanging on the production
// defaults (10 minutes / 1 hour).
func fastMonitors(adapter kube.Adapter) (*readiness.EngineMonitor, *readiness.JobMonitor) {
	em := readiness.NewEngineMonitor(adapter, readiness.EngineMonitorConfig{
		Timeout: time.Second, PollPeriod: 5 * time.Millisecond, MaxFailures: 1,
	})
	jm := readiness.NewJobMonitor(adapter, readiness.JobMonitorConfig{
		Timeout: time.Second, PollPeriod: 5 * time.Millisecond, MaxFailures: 1,
	})
	return em, jm
}

func newExecutor(t *testing.T, adapter *kubefake.Adapter) (*Executor, *store.CampaignStore, *store.EngineReleaseStore) {
	db := dbtest.Open(t)
	campaigns := store.NewCampaignStore(db)
	releases := store.NewEngineReleaseStore(db)
	reuses := store.NewReuseRecordStore(db)
	cleaner := cleanup.New(adapter, releases, campaigns)
	reuseCache := reuse.New(adapter, reuses, releases, cleaner)
	em, jm := fastMonitors(adapter)
	ex := New(adapter, nil, campaigns, releases, reuseCache, em, jm, cleaner, Config{
		ChartPath: "/charts/engine", DefaultNamespace: "default",
	})
	return ex, campaigns, releases
}

func benchCampaign(skipEngine bool, benches ...model.BenchmarkSpec) *model.Campaign {
	spec := model.EngineSpecJSON(model.EngineSpec{ModelIdentifier: "meta-llama/Llama-3-8B", AccelClass: "mi300x", AccelCount: 8})
	c := &model.Campaign{
		Priority:   model.PriorityMedium,
		Phase:      model.PhasePending,
		SkipEngine: skipEngine,
		Benchmarks: benches,
	}
	if !skipEngine {
		c.EngineSpec = &spec
	}
	c.TotalSteps = model.TotalStepsFor(skipEngine, len(benches))
	return c
}

func mustInsert(t *testing.T, campaigns *store.CampaignStore, c *model.Campaign) {
	t.Helper()
	require.NoError(t, campaigns.Insert(context.Background(), c))
}

// freshInstallAdapter models a cluster with no pre-existing release at the
// deterministic name: release_status reports unknown until install_release runs,
// then deployed afterward, so the Conflict Resolver takes the plain install path
// instead of the cleanup-and-install path (which sleeps for a grace period).
func freshInstallAdapter() *kubefake.Adapter {
	installed := false
	adapter := &kubefake.Adapter{}
	adapter.InstallReleaseFunc = func(ctx context.Context, releaseName, chartPath, namespace, valuesText string) error {
		installed = true
		return nil
	}
	adapter.ReleaseStatusFunc = func(ctx context.Context, releaseName, namespace string) (kube.ReleaseStatus, error) {
		if installed {
			return kube.ReleaseStatus{Phase: kube.ReleaseDeployed}, nil
		}
		return kube.ReleaseStatus{Phase: kube.ReleaseUnknown}, nil
	}
	return adapter
}

func TestRun_SkipEngine_NoRunningEngineFound_StillCompletes(t *testing.T) {
	adapter := &kubefake.Adapter{
		ListReleasesByLabelFunc: func(ctx context.Context, label, namespace string) ([]kube.ReleaseSummary, error) {
			return nil, nil
		},
	}
	ex, campaigns, _ := newExecutor(t, adapter)
	campaign := benchCampaign(true, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)

	err := ex.Run(context.Background(), campaign)

	require.NoError(t, err)
	assert.Equal(t, model.PhaseCompleted, campaign.Phase)

	fresh, err := campaigns.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseCompleted, fresh.Phase)
	assert.Len(t, fresh.Jobs, 1)
	assert.Equal(t, model.JobTerminalSucceeded, fresh.Jobs[0].TerminalState)
}

func TestRun_SkipEngine_AttachesToRunningEngine(t *testing.T) {
	adapter := &kubefake.Adapter{
		ListReleasesByLabelFunc: func(ctx context.Context, label, namespace string) ([]kube.ReleaseSummary, error) {
			return []kube.ReleaseSummary{{Name: "engine-preexisting"}}, nil
		},
	}
	ex, campaigns, releases := newExecutor(t, adapter)
	campaign := benchCampaign(true, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	require.NotNil(t, campaign.EngineReleaseID)
	release, err := releases.Get(context.Background(), *campaign.EngineReleaseID)
	require.NoError(t, err)
	assert.Equal(t, "engine-preexisting", release.ReleaseName)
	assert.False(t, release.OwnedByController, "skip_engine attachment must never be torn down by cleanup")
}

func TestRun_FullLifecycle_ProvisionsEngineAndRunsBenchmark(t *testing.T) {
	adapter := freshInstallAdapter()
	ex, campaigns, releases := newExecutor(t, adapter)
	campaign := benchCampaign(false, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseCompleted, campaign.Phase)
	assert.Equal(t, campaign.TotalSteps, campaign.CompletedSteps)
	require.NotNil(t, campaign.EngineReleaseID)
	release, err := releases.Get(context.Background(), *campaign.EngineReleaseID)
	require.NoError(t, err)
	assert.Equal(t, model.EngineReleaseRunning, release.Phase)
	assert.True(t, release.OwnedByController)
	assert.Contains(t, adapter.Calls, "InstallRelease")
}

func TestRun_EngineInstallFails_CampaignFailsAndReleaseMarkedFailed(t *testing.T) {
	adapter := freshInstallAdapter()
	adapter.InstallReleaseFunc = func(ctx context.Context, releaseName, chartPath, namespace, valuesText string) error {
		return assert.AnError
	}
	ex, campaigns, releases := newExecutor(t, adapter)
	campaign := benchCampaign(false, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseFailed, campaign.Phase)
	assert.NotEmpty(t, campaign.ErrorMessage)
	require.NotNil(t, campaign.EngineReleaseID)
	release, err := releases.Get(context.Background(), *campaign.EngineReleaseID)
	require.NoError(t, err)
	assert.Equal(t, model.EngineReleaseFailed, release.Phase)
}

func TestRun_EngineNeverReady_TimesOutAndFails(t *testing.T) {
	adapter := freshInstallAdapter()
	adapter.PodReadinessFunc = func(ctx context.Context, selectorByRelease, namespace string) (bool, error) {
		return false, nil
	}
	ex, campaigns, _ := newExecutor(t, adapter)
	campaign := benchCampaign(false, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseFailed, campaign.Phase)
}

func TestRun_BenchmarkFailsToDeploy_CampaignFails(t *testing.T) {
	adapter := &kubefake.Adapter{
		ApplyManifestFunc: func(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error) {
			return nil, assert.AnError
		},
		JobStatusFunc: func(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
			return kube.JobStatus{Phase: kube.JobNotFound}, nil
		},
	}
	ex, campaigns, _ := newExecutor(t, adapter)
	campaign := benchCampaign(true, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseFailed, campaign.Phase)
	require.Len(t, campaign.Jobs, 1)
	assert.True(t, campaign.Jobs[0].DeploymentError)
}

func TestRun_BenchmarkJobFails_CampaignFailsWithMaxFailuresTerminal(t *testing.T) {
	adapter := &kubefake.Adapter{
		JobStatusFunc: func(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
			return kube.JobStatus{Phase: kube.JobFailed, FailureReason: "OOMKilled"}, nil
		},
	}
	ex, campaigns, _ := newExecutor(t, adapter)
	campaign := benchCampaign(true, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseFailed, campaign.Phase)
	assert.Equal(t, "OOMKilled", campaign.ErrorMessage)
	require.Len(t, campaign.Jobs, 1)
	assert.Equal(t, model.JobTerminalMaxFailures, campaign.Jobs[0].TerminalState)
}

func TestRun_MultipleBenchmarksRunInOrder(t *testing.T) {
	var applyOrder []string
	adapter := &kubefake.Adapter{
		ApplyManifestFunc: func(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error) {
			applyOrder = append(applyOrder, text)
			return []kube.AppliedResource{{Kind: "Job", Name: text, Namespace: namespace}}, nil
		},
	}
	ex, campaigns, _ := newExecutor(t, adapter)
	campaign := benchCampaign(true,
		model.BenchmarkSpec{ManifestText: "bench-a", Namespace: "default"},
		model.BenchmarkSpec{ManifestText: "bench-b", Namespace: "default"},
	)
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseCompleted, campaign.Phase)
	assert.Equal(t, []string{"bench-a", "bench-b"}, applyOrder)
	require.Len(t, campaign.Jobs, 2)
}

func TestRun_CancelledBeforeStart_TransitionsToCancelled(t *testing.T) {
	adapter := &kubefake.Adapter{}
	ex, campaigns, _ := newExecutor(t, adapter)
	campaign := benchCampaign(true, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	mustInsert(t, campaigns, campaign)
	cancel := true
	require.NoError(t, campaigns.Update(context.Background(), campaign.ID, store.CampaignPatch{CancelRequested: &cancel}))

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseCancelled, campaign.Phase)
}

func TestRun_ReusesHealthyExistingRelease(t *testing.T) {
	adapter := freshInstallAdapter()
	ex, campaigns, releases := newExecutor(t, adapter)

	first := benchCampaign(false, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	first.EngineSpec.ValuesText = "replicaCount: 1"
	mustInsert(t, campaigns, first)
	require.NoError(t, ex.Run(context.Background(), first))
	require.Equal(t, model.PhaseCompleted, first.Phase)
	firstReleaseID := *first.EngineReleaseID

	second := benchCampaign(false, model.BenchmarkSpec{ManifestText: "name: bench-2", Namespace: "default"})
	second.EngineSpec.ValuesText = "replicaCount: 1"
	mustInsert(t, campaigns, second)
	require.NoError(t, ex.Run(context.Background(), second))

	assert.Equal(t, model.PhaseCompleted, second.Phase)
	require.NotNil(t, second.EngineReleaseID)
	assert.Equal(t, firstReleaseID, *second.EngineReleaseID, "second campaign should reuse the first's release")

	installs := 0
	for _, c := range adapter.Calls {
		if c == "InstallRelease" {
			installs++
		}
	}
	assert.Equal(t, 1, installs, "only the first campaign should have installed the engine")

	_ = releases
}

func TestRun_ConfigurationError_MissingEngineSpec(t *testing.T) {
	adapter := &kubefake.Adapter{}
	ex, campaigns, _ := newExecutor(t, adapter)
	campaign := benchCampaign(false, model.BenchmarkSpec{ManifestText: "name: bench-1", Namespace: "default"})
	campaign.EngineSpec = nil
	mustInsert(t, campaigns, campaign)

	require.NoError(t, ex.Run(context.Background(), campaign))

	assert.Equal(t, model.PhaseFailed, campaign.Phase)
	assert.Contains(t, campaign.ErrorMessage, "configuration error")
}

func TestCoreConfigKey_DiffersAcrossParallelism(t *testing.T) {
	a := coreConfigKey(&model.EngineSpec{ModelIdentifier: "m", ParallelTensor: 1})
	b := coreConfigKey(&model.EngineSpec{ModelIdentifier: "m", ParallelTensor: 2})
	assert.NotEqual(t, a, b)
}

func TestParsedJobName(t *testing.T) {
	manifest := "apiVersion: batch/v1\nkind: Job\nmetadata:\n  name: bench-1\n  namespace: default\n"
	assert.Equal(t, "bench-1", parsedJobName(manifest))
}

func TestParsedJobName_NoNameField(t *testing.T) {
	assert.Equal(t, "", parsedJobName("apiVersion: batch/v1\nkind: Job\n"))
}
