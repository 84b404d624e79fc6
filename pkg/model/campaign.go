// Package model holds the persisted shapes of the campaign controller's data model:
// Campaign, EngineRelease, ReuseRecord, and JobRecord (spec §3), with gorm tags and
// JSON-column codecs for the open-ended nested structures.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Priority is strictly ordered urgent > high > medium > low.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a descending sort weight: higher rank sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Phase is the campaign lifecycle state. The DAG is pending -> processing ->
// {completed, failed, cancelled}; no other edge exists (invariant 1).
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseProcessing Phase = "processing"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// validNextPhases enforces invariant 1: the only allowed transitions.
var validNextPhases = map[Phase]map[Phase]bool{
	PhasePending:    {PhaseProcessing: true},
	PhaseProcessing: {PhaseCompleted: true, PhaseFailed: true, PhaseCancelled: true},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge in the
// monotonic phase DAG. A phase transitioning to itself is never legal; callers that
// merely refresh fields on the same phase should not call Update through this check.
func CanTransition(from, to Phase) bool {
	next, ok := validNextPhases[from]
	if !ok {
		return false
	}
	return next[to]
}

// EngineSpec is the structured serving configuration for an engine-provisioning
// campaign (spec §3, §6 recognized options). ValuesText, when non-empty, is
// authoritative and supersedes the structured fields for fingerprinting and install.
type EngineSpec struct {
	ModelIdentifier string `json:"model_identifier"`
	AccelClass      string `json:"accel_class"`
	AccelCount      int    `json:"accel_count"`

	ParallelTensor   int `json:"parallel_tensor,omitempty"`
	ParallelPipeline int `json:"parallel_pipeline,omitempty"`

	MaxSeqs      int `json:"max_seqs,omitempty"`
	BlockSize    int `json:"block_size,omitempty"`
	MaxModelLen  int `json:"max_model_len,omitempty"`

	MemoryUtilization float64 `json:"memory_utilization,omitempty"`
	Dtype             string  `json:"dtype,omitempty"`
	Quantization      string  `json:"quantization,omitempty"`
	TrustRemoteCode   bool    `json:"trust_remote_code,omitempty"`

	ServedAlias string `json:"served_alias,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Namespace   string `json:"namespace,omitempty"`

	// AdditionalArgs preserves unrecognized keys verbatim for pass-through.
	AdditionalArgs map[string]string `json:"additional_args,omitempty"`

	// ValuesText is the opaque values document; when set it is authoritative.
	ValuesText string `json:"values_text,omitempty"`
}

// HasValuesDocument reports whether the campaign carries an authoritative values blob.
func (e *EngineSpec) HasValuesDocument() bool {
	return e != nil && e.ValuesText != ""
}

// BenchmarkSpec is one ordered entry in a campaign's benchmark list.
type BenchmarkSpec struct {
	DisplayName  string `json:"display_name,omitempty"`
	ManifestText string `json:"manifest_text"`
	Namespace    string `json:"namespace"`
}

// JobRecord tracks one submitted benchmark job (spec §3).
type JobRecord struct {
	Name           string `json:"name"`
	OriginalName   string `json:"original_name"`
	Namespace      string `json:"namespace"`
	TerminalState  string `json:"terminal_state,omitempty"`
	DeploymentError bool  `json:"deployment_error,omitempty"`
}

// JobRecord terminal states (spec §3).
const (
	JobTerminalSucceeded            = "succeeded"
	JobTerminalFailed                = "failed"
	JobTerminalTimeout               = "terminated-by-timeout"
	JobTerminalMaxFailures           = "terminated-by-max-failures"
)

// Campaign is the top-level unit of work (spec §3).
type Campaign struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`

	EngineSpec  *EngineSpecJSON  `gorm:"column:engine_spec;type:jsonb" json:"engine_spec,omitempty"`
	SkipEngine  bool             `gorm:"column:skip_engine" json:"skip_engine"`
	Benchmarks  BenchmarkListJSON `gorm:"column:benchmarks;type:jsonb" json:"benchmarks"`

	Priority Priority `gorm:"column:priority;index" json:"priority"`
	Phase    Phase    `gorm:"column:phase;index" json:"phase"`
	CurrentStep string `gorm:"column:current_step" json:"current_step"`

	TotalSteps     int `gorm:"column:total_steps" json:"total_steps"`
	CompletedSteps int `gorm:"column:completed_steps" json:"completed_steps"`

	CreatedAt   time.Time  `gorm:"column:created_at;index;autoCreateTime" json:"created_at"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	EngineReleaseID *uuid.UUID   `gorm:"column:engine_release_id;type:uuid" json:"engine_release_id,omitempty"`
	Jobs            JobListJSON  `gorm:"column:jobs;type:jsonb" json:"jobs"`

	ErrorMessage string `gorm:"column:error_message" json:"error_message,omitempty"`

	CancelRequested bool `gorm:"column:cancel_requested" json:"-"`

	CleanupAttempted bool `gorm:"column:cleanup_attempted" json:"cleanup_attempted"`
	CleanupSuccessful bool `gorm:"column:cleanup_successful" json:"cleanup_successful"`

	// Labels/Notes are opaque passthrough metadata, supplemented from the original's
	// UI tagging feature; the controller never interprets them.
	Labels map[string]string `gorm:"column:labels;type:jsonb;serializer:json" json:"labels,omitempty"`
	Notes  string            `gorm:"column:notes" json:"notes,omitempty"`
}

func (Campaign) TableName() string { return "campaigns" }

// TotalStepsFor computes total_steps per spec §3: skip_engine ? 0 : 1, plus |benchmarks|.
func TotalStepsFor(skipEngine bool, benchmarkCount int) int {
	total := benchmarkCount
	if !skipEngine {
		total++
	}
	return total
}
