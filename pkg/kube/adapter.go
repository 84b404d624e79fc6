// Package kube implements the Kube Adapter (spec §4.1): the only component that speaks
// to the cluster. Centralizing cluster I/O behind this interface is what makes the rest
// of the controller testable against a fake.
package kube

import "context"

// ReleasePhase mirrors helm's own status vocabulary.
type ReleasePhase string

const (
	ReleasePendingInstall ReleasePhase = "pending-install"
	ReleasePendingUpgrade ReleasePhase = "pending-upgrade"
	ReleaseDeployed       ReleasePhase = "deployed"
	ReleaseFailed         ReleasePhase = "failed"
	ReleaseUnknown        ReleasePhase = "unknown"
)

type ReleaseStatus struct {
	Phase       ReleasePhase
	Description string
}

// JobPhase is the derived lifecycle of a Kubernetes Job (spec §4.4).
type JobPhase string

const (
	JobPending   JobPhase = "pending"
	JobRunning   JobPhase = "running"
	JobSucceeded JobPhase = "succeeded"
	JobFailed    JobPhase = "failed"
	JobNotFound  JobPhase = "not_found"
)

type JobStatus struct {
	Phase         JobPhase
	ActiveCount   int32
	SucceededCount int32
	FailedCount    int32
	StartedAt     *int64
	CompletedAt   *int64
	FailureReason string
}

type PodInfo struct {
	PodName    string
	Phase      string
	Ready      bool
	Containers []string
}

type ReleaseSummary struct {
	Name         string
	Labels       map[string]string
	Replicas     int32
	ReadyReplicas int32
}

type AppliedResource struct {
	Kind      string
	Name      string
	Namespace string
}

// Adapter is the full surface consumed by the Reuse Cache, Readiness Monitor,
// Cleanup Engine, and Executor. A fake implementing this interface is the sole test
// seam for everything above it.
type Adapter interface {
	InstallRelease(ctx context.Context, releaseName, chartPath, namespace, valuesText string) error
	UninstallRelease(ctx context.Context, releaseName, namespace string) (bool, error)
	ReleaseStatus(ctx context.Context, releaseName, namespace string) (ReleaseStatus, error)
	PodReadiness(ctx context.Context, selectorByRelease, namespace string) (bool, error)

	ApplyManifest(ctx context.Context, text, namespace string) ([]AppliedResource, error)
	DeleteManifest(ctx context.Context, text, namespace string) ([]AppliedResource, error)

	JobStatus(ctx context.Context, name, namespace string) (JobStatus, error)
	DeleteJob(ctx context.Context, name, namespace string) (bool, error)
	ListPodsForJob(ctx context.Context, name, namespace string) ([]PodInfo, error)
	ListReleasesByLabel(ctx context.Context, label, namespace string) ([]ReleaseSummary, error)
	DeleteResourcesByLabel(ctx context.Context, label, namespace string) error
	ListJobs(ctx context.Context, namespace string) ([]JobSummary, error)
	StreamPodLog(ctx context.Context, pod, namespace string, tailLines int64, follow bool) (<-chan string, error)
}

// JobSummary is the minimal shape the Cleanup Engine's orphan-discovery pass needs:
// enough to apply the label/name-pattern heuristic without a full JobStatus fetch.
type JobSummary struct {
	Name      string
	Namespace string
	Phase     JobPhase
}
