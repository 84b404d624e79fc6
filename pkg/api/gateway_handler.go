package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/primus-bench/orchestrator/pkg/httpresp"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/submission"
)

// GatewayHandler is the "gateway" process's thin POST /queue/deployment entry point: it
// owns no Store of its own and forwards every submission to the scheduler process via
// pkg/submission.Client (spec §4.9's two-process deployment).
type GatewayHandler struct {
	peer *submission.Client
}

func NewGatewayHandler(peer *submission.Client) *GatewayHandler {
	return &GatewayHandler{peer: peer}
}

// Submit implements POST /queue/deployment by forwarding the request body verbatim to
// the scheduler process and relaying the id it assigns.
func (h *GatewayHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.Fail(c.Request.Context(), http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !req.Priority.Valid() {
		c.JSON(http.StatusBadRequest, httpresp.Fail(c.Request.Context(), http.StatusBadRequest, "invalid priority"))
		return
	}

	spec := req.EngineSpec
	if req.ValuesText != "" {
		if spec == nil {
			spec = &model.EngineSpec{}
		}
		spec.ValuesText = req.ValuesText
	}

	campaign := &model.Campaign{
		Benchmarks: model.BenchmarkListJSON(req.Benchmarks),
		Priority:   req.Priority,
		SkipEngine: req.SkipEngine,
		Labels:     req.Labels,
		Notes:      req.Notes,
	}
	if spec != nil {
		j := model.EngineSpecJSON(*spec)
		campaign.EngineSpec = &j
	}

	id, err := h.peer.SubmitCampaign(c.Request.Context(), campaign)
	if err != nil {
		c.JSON(http.StatusBadGateway, httpresp.Fail(c.Request.Context(), http.StatusBadGateway, "scheduler rejected submission: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), gin.H{"id": id}))
}
