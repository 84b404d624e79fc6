// Package submission implements the client side of the External Submission Adapter
// (spec §4.9): a thin resty-based HTTP client that forwards campaigns into a peer
// process's Store, patches status back, and forwards benchmark job operations to the
// peer's job-deploy surface when the Executor runs in "peer" mode instead of talking
// to the Kube Adapter directly. Grounded on ai-advisor/pkg/client/client.go's resty
// construction and call shape.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/model"
)

// Config mirrors ai-advisor's client Config (BaseURL/Timeout/RetryCount/RetryWaitTime).
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
	if c.RetryWaitTime == 0 {
		c.RetryWaitTime = time.Second
	}
	return c
}

// Client is the peer-process HTTP client.
type Client struct {
	http *resty.Client
}

// New builds a Client against cfg.BaseURL, matching ai-advisor's NewClient shape.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: http}
}

// deploymentRequest is the POST /queue/deployment body (spec §6).
type deploymentRequest struct {
	EngineSpec *model.EngineSpec     `json:"engine_spec,omitempty"`
	Benchmarks model.BenchmarkListJSON `json:"benchmarks"`
	Priority   model.Priority        `json:"priority"`
	SkipEngine bool                  `json:"skip_engine"`
	Labels     map[string]string     `json:"labels,omitempty"`
	Notes      string                `json:"notes,omitempty"`
}

type deploymentResponse struct {
	ID uuid.UUID `json:"id"`
}

// envelope mirrors httpresp.Response's shape enough to unwrap the `data` field every
// pkg/api handler wraps its payload in, without importing pkg/api's handler types.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// SubmitCampaign forwards a campaign to the peer process's Store via POST
// /queue/deployment, returning the id the peer assigned (spec §4.9).
func (c *Client) SubmitCampaign(ctx context.Context, campaign *model.Campaign) (uuid.UUID, error) {
	var spec *model.EngineSpec
	if campaign.EngineSpec != nil {
		spec = campaign.EngineSpec.AsSpec()
	}
	req := deploymentRequest{
		EngineSpec: spec,
		Benchmarks: campaign.Benchmarks,
		Priority:   campaign.Priority,
		SkipEngine: campaign.SkipEngine,
		Labels:     campaign.Labels,
		Notes:      campaign.Notes,
	}

	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&env).
		Post("/queue/deployment")
	if err != nil {
		return uuid.Nil, wrapPeerErr("submitting campaign to peer", err)
	}
	if resp.IsError() {
		return uuid.Nil, wrapPeerErr(fmt.Sprintf("peer rejected campaign submission: %s", resp.String()), nil)
	}
	var result deploymentResponse
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return uuid.Nil, wrapPeerErr("decoding peer deployment response", err)
	}
	return result.ID, nil
}

// statusPatch mirrors store.CampaignPatch's externally-visible subset for PATCH
// /queue/:id/status (spec §4.9); only phase, current_step and error_message cross the wire.
type statusPatch struct {
	Phase        *model.Phase `json:"phase,omitempty"`
	CurrentStep  *string      `json:"current_step,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// PatchStatus sends a partial status update back to the peer for campaign id.
func (c *Client) PatchStatus(ctx context.Context, id uuid.UUID, phase *model.Phase, currentStep, errorMessage *string) error {
	patch := statusPatch{Phase: phase, CurrentStep: currentStep, ErrorMessage: errorMessage}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id.String()).
		SetBody(patch).
		Patch("/queue/{id}/status")
	if err != nil {
		return wrapPeerErr("patching campaign status on peer", err)
	}
	if resp.IsError() {
		return wrapPeerErr(fmt.Sprintf("peer rejected status patch: %s", resp.String()), nil)
	}
	return nil
}

// deployRequest is the body for the benchmark-job submission surface's POST /deploy.
type deployRequest struct {
	ManifestText string `json:"manifest_text"`
	Namespace    string `json:"namespace"`
}

type deployResponse struct {
	ResourceKind string `json:"resource_kind"`
	ResourceName string `json:"resource_name"`
}

// ApplyManifest satisfies executor.JobSubmitter by forwarding the manifest to the
// peer's POST /deploy (spec §6), used when the Executor submits benchmark jobs via a
// peer process instead of a direct Kube Adapter.
func (c *Client) ApplyManifest(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error) {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(deployRequest{ManifestText: text, Namespace: namespace}).
		SetResult(&env).
		Post("/deploy")
	if err != nil {
		return nil, wrapPeerErr("forwarding manifest to peer /deploy", err)
	}
	if resp.IsError() {
		return nil, wrapPeerErr(fmt.Sprintf("peer /deploy returned error: %s", resp.String()), nil)
	}
	var result deployResponse
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, wrapPeerErr("decoding peer deploy response", err)
	}
	return []kube.AppliedResource{{Kind: result.ResourceKind, Name: result.ResourceName, Namespace: namespace}}, nil
}

type jobStatusResponse struct {
	Phase         kube.JobPhase `json:"phase"`
	ActiveCount   int32         `json:"active_count"`
	SucceededCount int32        `json:"succeeded_count"`
	FailedCount    int32        `json:"failed_count"`
	StartedAt      *int64       `json:"started_at,omitempty"`
	CompletedAt    *int64       `json:"completed_at,omitempty"`
}

// JobStatus satisfies executor.JobSubmitter via GET /jobs/{name}/status?namespace=….
func (c *Client) JobStatus(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetQueryParam("namespace", namespace).
		SetResult(&env).
		Get("/jobs/{name}/status")
	if err != nil {
		return kube.JobStatus{}, wrapPeerErr("querying peer job status", err)
	}
	if resp.StatusCode() == 404 {
		return kube.JobStatus{Phase: kube.JobNotFound}, nil
	}
	if resp.IsError() {
		return kube.JobStatus{}, wrapPeerErr(fmt.Sprintf("peer job status returned error: %s", resp.String()), nil)
	}
	var result jobStatusResponse
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return kube.JobStatus{}, wrapPeerErr("decoding peer job status response", err)
	}
	return kube.JobStatus{
		Phase:          result.Phase,
		ActiveCount:    result.ActiveCount,
		SucceededCount: result.SucceededCount,
		FailedCount:    result.FailedCount,
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
	}, nil
}

// DeleteJob satisfies executor.JobSubmitter via DELETE /jobs/{name}/delete?namespace=….
func (c *Client) DeleteJob(ctx context.Context, name, namespace string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetQueryParam("namespace", namespace).
		Delete("/jobs/{name}/delete")
	if err != nil {
		return false, wrapPeerErr("deleting job via peer", err)
	}
	if resp.StatusCode() == 404 {
		return true, nil
	}
	if resp.IsError() {
		return false, wrapPeerErr(fmt.Sprintf("peer job delete returned error: %s", resp.String()), nil)
	}
	return true, nil
}

func wrapPeerErr(message string, cause error) error {
	b := apperrors.New().
		WithKind(apperrors.KindTransient).
		WithCode(apperrors.CodePeerServiceError).
		WithMessage(message)
	if cause != nil {
		b = b.WithError(cause)
	}
	return b.Err()
}
