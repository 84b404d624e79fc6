package submission_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primus-bench/orchestrator/pkg/api"
	"github.com/primus-bench/orchestrator/pkg/cleanup"
	"github.com/primus-bench/orchestrator/pkg/dbtest"
	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/kubefake"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/store"
	"github.com/primus-bench/orchestrator/pkg/submission"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newPeerServer stands up a real scheduler-side gin server (queue + job routes) backed
// by an in-memory store, so the client is exercised against the actual httpresp
// envelope its peer emits rather than a hand-shaped fixture.
func newPeerServer(t *testing.T, adapter *kubefake.Adapter) *httptest.Server {
	db := dbtest.Open(t)
	campaigns := store.NewCampaignStore(db)
	releases := store.NewEngineReleaseStore(db)
	cleaner := cleanup.New(adapter, releases, campaigns)

	engine := api.NewEngine()
	api.RegisterQueueRoutes(engine, api.NewCampaignHandler(campaigns, releases, cleaner, nil))
	api.RegisterJobRoutes(engine, api.NewJobHandler(adapter))

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *submission.Client {
	return submission.New(submission.Config{BaseURL: baseURL, Timeout: 5 * time.Second, RetryCount: 0, RetryWaitTime: time.Millisecond})
}

func TestSubmitCampaign_ReturnsPeerAssignedID(t *testing.T) {
	srv := newPeerServer(t, &kubefake.Adapter{})
	client := newTestClient(srv.URL)

	campaign := &model.Campaign{
		Priority:   model.PriorityHigh,
		SkipEngine: true,
		Benchmarks: model.BenchmarkListJSON{{ManifestText: "name: bench-1", Namespace: "default"}},
	}

	id, err := client.SubmitCampaign(context.Background(), campaign)

	require.NoError(t, err)
	assert.NotEmpty(t, id.String())
}

func TestApplyManifest_ReturnsAppliedResource(t *testing.T) {
	adapter := &kubefake.Adapter{
		ApplyManifestFunc: func(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error) {
			return []kube.AppliedResource{{Kind: "Job", Name: "bench-1", Namespace: namespace}}, nil
		},
	}
	srv := newPeerServer(t, adapter)
	client := newTestClient(srv.URL)

	resources, err := client.ApplyManifest(context.Background(), "name: bench-1", "default")

	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "bench-1", resources[0].Name)
	assert.Equal(t, "Job", resources[0].Kind)
}

func TestJobStatus_ReturnsDecodedPhase(t *testing.T) {
	adapter := &kubefake.Adapter{
		JobStatusFunc: func(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
			return kube.JobStatus{Phase: kube.JobSucceeded, SucceededCount: 1}, nil
		},
	}
	srv := newPeerServer(t, adapter)
	client := newTestClient(srv.URL)

	status, err := client.JobStatus(context.Background(), "bench-1", "default")

	require.NoError(t, err)
	assert.Equal(t, kube.JobSucceeded, status.Phase)
	assert.Equal(t, int32(1), status.SucceededCount)
}

func TestJobStatus_NotFoundMapsToJobNotFound(t *testing.T) {
	adapter := &kubefake.Adapter{
		JobStatusFunc: func(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
			return kube.JobStatus{Phase: kube.JobNotFound}, nil
		},
	}
	srv := newPeerServer(t, adapter)
	client := newTestClient(srv.URL)

	status, err := client.JobStatus(context.Background(), "bench-1", "default")

	require.NoError(t, err)
	assert.Equal(t, kube.JobNotFound, status.Phase)
}

func TestDeleteJob_Succeeds(t *testing.T) {
	srv := newPeerServer(t, &kubefake.Adapter{})
	client := newTestClient(srv.URL)

	ok, err := client.DeleteJob(context.Background(), "bench-1", "default")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPatchStatus_Succeeds(t *testing.T) {
	srv := newPeerServer(t, &kubefake.Adapter{})
	client := newTestClient(srv.URL)

	// Submit first so there is a row the peer can legally patch.
	id, err := client.SubmitCampaign(context.Background(), &model.Campaign{Priority: model.PriorityMedium, SkipEngine: true})
	require.NoError(t, err)

	phase := model.PhaseProcessing
	err = client.PatchStatus(context.Background(), id, &phase, nil, nil)

	assert.NoError(t, err)
}
