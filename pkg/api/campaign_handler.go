package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/primus-bench/orchestrator/pkg/cleanup"
	"github.com/primus-bench/orchestrator/pkg/httpresp"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/scheduler"
	"github.com/primus-bench/orchestrator/pkg/store"
)

// CampaignHandler implements the full /queue/* submission surface (spec §6) against a
// locally-owned Campaign Store, mirroring the ai-advisor handler package's
// facade-holding-struct shape.
type CampaignHandler struct {
	campaigns *store.CampaignStore
	releases  *store.EngineReleaseStore
	cleaner   *cleanup.Engine
	loop      *scheduler.Loop
}

func NewCampaignHandler(campaigns *store.CampaignStore, releases *store.EngineReleaseStore, cleaner *cleanup.Engine, loop *scheduler.Loop) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, releases: releases, cleaner: cleaner, loop: loop}
}

// submitRequest is the POST /queue/deployment body (spec §6): engine_spec? or
// values_text?; benchmarks[]; priority; skip_engine.
type submitRequest struct {
	EngineSpec *model.EngineSpec     `json:"engine_spec"`
	ValuesText string                `json:"values_text"`
	Benchmarks []model.BenchmarkSpec `json:"benchmarks"`
	Priority   model.Priority        `json:"priority"`
	SkipEngine bool                  `json:"skip_engine"`
	Labels     map[string]string     `json:"labels"`
	Notes      string                `json:"notes"`
}

// Submit implements POST /queue/deployment.
func (h *CampaignHandler) Submit(c *gin.Context) {
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

	var specJSON *model.EngineSpecJSON
	if spec != nil {
		j := model.EngineSpecJSON(*spec)
		specJSON = &j
	}

	campaign := &model.Campaign{
		ID:         uuid.New(),
		EngineSpec: specJSON,
		SkipEngine: req.SkipEngine,
		Benchmarks: model.BenchmarkListJSON(req.Benchmarks),
		Priority:   req.Priority,
		Phase:      model.PhasePending,
		TotalSteps: model.TotalStepsFor(req.SkipEngine, len(req.Benchmarks)),
		Jobs:       model.JobListJSON{},
		Labels:     req.Labels,
		Notes:      req.Notes,
	}

	if err := h.campaigns.Insert(c.Request.Context(), campaign); err != nil {
		c.JSON(http.StatusServiceUnavailable, httpresp.Fail(c.Request.Context(), http.StatusServiceUnavailable, "failed to enqueue campaign: "+err.Error()))
		return
	}

	if h.loop != nil {
		h.loop.ProcessNow()
	}

	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), gin.H{"id": campaign.ID}))
}

// List implements GET /queue/list, with the original's supplemented ?priority= and
// ?model= filters (SPEC_FULL.md §6); their absence reproduces spec.md's bare
// "list all, newest first" exactly.
func (h *CampaignHandler) List(c *gin.Context) {
	filter := store.ListFilter{
		Priority: model.Priority(c.Query("priority")),
		Model:    c.Query("model"),
	}
	campaigns, err := h.campaigns.ListAll(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httpresp.Fail(c.Request.Context(), http.StatusServiceUnavailable, "failed to list campaigns: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), httpresp.NewListData(campaigns, len(campaigns))))
}

// StatusCounts implements GET /queue/status: aggregate counts by phase.
func (h *CampaignHandler) StatusCounts(c *gin.Context) {
	counts, err := h.campaigns.StatusCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httpresp.Fail(c.Request.Context(), http.StatusServiceUnavailable, "failed to aggregate status: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), counts))
}

// Get implements GET /queue/{id}.
func (h *CampaignHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	campaign, err := h.campaigns.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, httpresp.Fail(c.Request.Context(), http.StatusNotFound, "campaign not found"))
		return
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), campaign))
}

// Delete implements DELETE /queue/{id}?force=bool. With force on a processing
// campaign, Cleanup Engine is invoked before the row is removed (spec §6, §4.2).
func (h *CampaignHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	if force {
		campaign, err := h.campaigns.Get(c.Request.Context(), id)
		if err == nil && campaign.Phase == model.PhaseProcessing {
			h.cleaner.CleanupCampaign(c.Request.Context(), campaign, "deleted by user with force")
		}
	}

	if err := h.campaigns.Delete(c.Request.Context(), id, force); err != nil {
		c.JSON(http.StatusConflict, httpresp.Fail(c.Request.Context(), http.StatusConflict, "failed to delete campaign: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), nil))
}

// Cancel implements POST /queue/{id}/cancel. Pending campaigns cancel immediately
// (spec §5); processing campaigns have their cancel_requested bit set and are
// observed at the Executor's next await point. Cancel on a terminal campaign is a
// no-op (spec §8 idempotence law).
func (h *CampaignHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	campaign, err := h.campaigns.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, httpresp.Fail(c.Request.Context(), http.StatusNotFound, "campaign not found"))
		return
	}

	switch campaign.Phase {
	case model.PhasePending:
		phase := model.PhaseCancelled
		msg := "cancelled by user"
		if err := h.campaigns.Update(c.Request.Context(), id, store.CampaignPatch{Phase: &phase, ErrorMessage: &msg}); err != nil {
			c.JSON(http.StatusConflict, httpresp.Fail(c.Request.Context(), http.StatusConflict, "failed to cancel campaign: "+err.Error()))
			return
		}
	case model.PhaseProcessing:
		requested := true
		if err := h.campaigns.Update(c.Request.Context(), id, store.CampaignPatch{CancelRequested: &requested}); err != nil {
			c.JSON(http.StatusConflict, httpresp.Fail(c.Request.Context(), http.StatusConflict, "failed to request cancellation: "+err.Error()))
			return
		}
	default:
		// terminal: no-op.
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), nil))
}

type priorityRequest struct {
	Priority model.Priority `json:"priority"`
}

// SetPriority implements POST /queue/{id}/priority, permitted only while pending.
func (h *CampaignHandler) SetPriority(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Priority.Valid() {
		c.JSON(http.StatusBadRequest, httpresp.Fail(c.Request.Context(), http.StatusBadRequest, "invalid priority"))
		return
	}

	campaign, err := h.campaigns.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, httpresp.Fail(c.Request.Context(), http.StatusNotFound, "campaign not found"))
		return
	}
	if campaign.Phase != model.PhasePending {
		c.JSON(http.StatusConflict, httpresp.Fail(c.Request.Context(), http.StatusConflict, "priority may only change while pending"))
		return
	}

	if err := h.campaigns.SetPriority(c.Request.Context(), id, req.Priority); err != nil {
		c.JSON(http.StatusConflict, httpresp.Fail(c.Request.Context(), http.StatusConflict, "failed to update priority: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), nil))
}

// statusPatchRequest is the PATCH /queue/{id}/status body sent by a peer process
// (spec §4.9); only the fields present are applied, subject to the monotonic phase
// invariant enforced by the store.
type statusPatchRequest struct {
	Phase        *model.Phase `json:"phase"`
	CurrentStep  *string      `json:"current_step"`
	ErrorMessage *string      `json:"error_message"`
}

// PatchStatus implements PATCH /queue/{id}/status.
func (h *CampaignHandler) PatchStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.Fail(c.Request.Context(), http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	patch := store.CampaignPatch{
		Phase:        req.Phase,
		CurrentStep:  req.CurrentStep,
		ErrorMessage: req.ErrorMessage,
	}
	if err := h.campaigns.Update(c.Request.Context(), id, patch); err != nil {
		c.JSON(http.StatusConflict, httpresp.Fail(c.Request.Context(), http.StatusConflict, "status patch rejected: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, httpresp.Success(c.Request.Context(), nil))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.Fail(c.Request.Context(), http.StatusBadRequest, "invalid campaign id"))
		return uuid.Nil, false
	}
	return id, true
}
