package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/kubefake"
)

func newJobTestEngine(adapter *kubefake.Adapter) *gin.Engine {
	engine := NewEngine()
	RegisterJobRoutes(engine, NewJobHandler(adapter))
	return engine
}

func TestDeploy_ReturnsAppliedResource(t *testing.T) {
	adapter := &kubefake.Adapter{
		ApplyManifestFunc: func(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error) {
			return []kube.AppliedResource{{Kind: "Job", Name: "bench-1", Namespace: namespace}}, nil
		},
	}
	engine := newJobTestEngine(adapter)

	body := `{"manifest_text": "name: bench-1", "namespace": "default"}`
	req := httptest.NewRequest(http.MethodPost, "/deploy", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeploy_RequiresManifestText(t *testing.T) {
	engine := newJobTestEngine(&kubefake.Adapter{})

	body := `{"namespace": "default"}`
	req := httptest.NewRequest(http.MethodPost, "/deploy", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobStatus_NotFoundReturns404(t *testing.T) {
	adapter := &kubefake.Adapter{
		JobStatusFunc: func(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
			return kube.JobStatus{Phase: kube.JobNotFound}, nil
		},
	}
	engine := newJobTestEngine(adapter)

	req := httptest.NewRequest(http.MethodGet, "/jobs/bench-1/status?namespace=default", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobStatus_ReturnsPhase(t *testing.T) {
	adapter := &kubefake.Adapter{
		JobStatusFunc: func(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
			return kube.JobStatus{Phase: kube.JobRunning, ActiveCount: 1}, nil
		},
	}
	engine := newJobTestEngine(adapter)

	req := httptest.NewRequest(http.MethodGet, "/jobs/bench-1/status?namespace=default", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestJobDelete_IdempotentOnSecondCall(t *testing.T) {
	adapter := &kubefake.Adapter{}
	engine := newJobTestEngine(adapter)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/jobs/bench-1/delete?namespace=default", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
