package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/primus-bench/orchestrator/pkg/httpresp"
	"github.com/primus-bench/orchestrator/pkg/kube"
)

// JobHandler backs the benchmark-job submission surface (spec §6) consumed by an
// Executor running against a peer process (pkg/submission.Client) instead of a direct
// Kube Adapter, for the two-process deployment (spec §4.9).
type JobHandler struct {
	adapter kube.Adapter
}

func NewJobHandler(adapter kube.Adapter) *JobHandler {
	return &JobHandler{adapter: adapter}
}

type deployRequest struct {
	ManifestText string `json:"manifest_text" binding:"required"`
	Namespace    string `json:"namespace" binding:"required"`
}

type deployResponse struct {
	ResourceKind string `json:"resource_kind"`
	ResourceName string `json:"resource_name"`
}

// Deploy implements POST /deploy.
func (h *JobHandler) Deploy(c *gin.Context) {
	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.Fail(c.Request.Context(), http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	resources, err := h.adapter.ApplyManifest(c.Request.Context(), req.ManifestText, req.Namespace)
	if err != nil {
		c.JSON(http.StatusConflict, httpresp.Fail(c.Request.Context(), http.StatusConflict, "manifest apply failed: "+err.Error()))
		return
	}
	resp := deployResponse{}
	if len(resources) > 0 {
		resp.ResourceKind = resources[0].Kind
		resp.ResourceName = resources[0].Name
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), resp))
}

type jobStatusResponse struct {
	Phase          kube.JobPhase `json:"phase"`
	ActiveCount    int32         `json:"active_count"`
	SucceededCount int32         `json:"succeeded_count"`
	FailedCount    int32         `json:"failed_count"`
	StartedAt      *int64        `json:"started_at,omitempty"`
	CompletedAt    *int64        `json:"completed_at,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
}

// Status implements GET /jobs/{name}/status?namespace=….
func (h *JobHandler) Status(c *gin.Context) {
	name := c.Param("name")
	namespace := c.Query("namespace")

	status, err := h.adapter.JobStatus(c.Request.Context(), name, namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.Fail(c.Request.Context(), http.StatusInternalServerError, "job status lookup failed: "+err.Error()))
		return
	}
	if status.Phase == kube.JobNotFound {
		c.JSON(http.StatusNotFound, httpresp.Fail(c.Request.Context(), http.StatusNotFound, "job not found"))
		return
	}

	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), jobStatusResponse{
		Phase:          status.Phase,
		ActiveCount:    status.ActiveCount,
		SucceededCount: status.SucceededCount,
		FailedCount:    status.FailedCount,
		StartedAt:      status.StartedAt,
		CompletedAt:    status.CompletedAt,
		FailureReason:  status.FailureReason,
	}))
}

// Delete implements DELETE /jobs/{name}/delete?namespace=…. DeleteJob never raises on
// absence, so this is idempotent: deleting a job twice returns success both times.
func (h *JobHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	namespace := c.Query("namespace")

	if _, err := h.adapter.DeleteJob(c.Request.Context(), name, namespace); err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.Fail(c.Request.Context(), http.StatusInternalServerError, "job delete failed: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), nil))
}
