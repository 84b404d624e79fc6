// Package kubefake is a test double for kube.Adapter, mirroring the teacher's
// mock-facade-with-function-fields shape (e.g. BackfillMockFacade in
// gpu_aggregation_backfill/backfill_job_mock_test.go): a struct field per method,
// defaulting to a zero-value success when unset. Not a _test.go file so every
// package's tests (executor, cleanup, reuse, readiness, scheduler) can import it.
package kubefake

import (
	"context"

	"github.com/primus-bench/orchestrator/pkg/kube"
)

// Adapter is the configurable fake. Each Func field, when set, is called in place of
// the real Kube Adapter method; otherwise a permissive default is returned.
type Adapter struct {
	InstallReleaseFunc   func(ctx context.Context, releaseName, chartPath, namespace, valuesText string) error
	UninstallReleaseFunc func(ctx context.Context, releaseName, namespace string) (bool, error)
	ReleaseStatusFunc    func(ctx context.Context, releaseName, namespace string) (kube.ReleaseStatus, error)
	PodReadinessFunc     func(ctx context.Context, selectorByRelease, namespace string) (bool, error)

	ApplyManifestFunc  func(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error)
	DeleteManifestFunc func(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error)

	JobStatusFunc          func(ctx context.Context, name, namespace string) (kube.JobStatus, error)
	DeleteJobFunc          func(ctx context.Context, name, namespace string) (bool, error)
	ListPodsForJobFunc     func(ctx context.Context, name, namespace string) ([]kube.PodInfo, error)
	ListReleasesByLabelFunc func(ctx context.Context, label, namespace string) ([]kube.ReleaseSummary, error)
	DeleteResourcesByLabelFunc func(ctx context.Context, label, namespace string) error
	ListJobsFunc           func(ctx context.Context, namespace string) ([]kube.JobSummary, error)
	StreamPodLogFunc       func(ctx context.Context, pod, namespace string, tailLines int64, follow bool) (<-chan string, error)

	// Calls records every method invocation's name, for assertions on call order/count.
	Calls []string
}

func (a *Adapter) record(name string) { a.Calls = append(a.Calls, name) }

func (a *Adapter) InstallRelease(ctx context.Context, releaseName, chartPath, namespace, valuesText string) error {
	a.record("InstallRelease")
	if a.InstallReleaseFunc != nil {
		return a.InstallReleaseFunc(ctx, releaseName, chartPath, namespace, valuesText)
	}
	return nil
}

func (a *Adapter) UninstallRelease(ctx context.Context, releaseName, namespace string) (bool, error) {
	a.record("UninstallRelease")
	if a.UninstallReleaseFunc != nil {
		return a.UninstallReleaseFunc(ctx, releaseName, namespace)
	}
	return true, nil
}

func (a *Adapter) ReleaseStatus(ctx context.Context, releaseName, namespace string) (kube.ReleaseStatus, error) {
	a.record("ReleaseStatus")
	if a.ReleaseStatusFunc != nil {
		return a.ReleaseStatusFunc(ctx, releaseName, namespace)
	}
	return kube.ReleaseStatus{Phase: kube.ReleaseDeployed}, nil
}

func (a *Adapter) PodReadiness(ctx context.Context, selectorByRelease, namespace string) (bool, error) {
	a.record("PodReadiness")
	if a.PodReadinessFunc != nil {
		return a.PodReadinessFunc(ctx, selectorByRelease, namespace)
	}
	return true, nil
}

func (a *Adapter) ApplyManifest(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error) {
	a.record("ApplyManifest")
	if a.ApplyManifestFunc != nil {
		return a.ApplyManifestFunc(ctx, text, namespace)
	}
	return []kube.AppliedResource{{Kind: "Job", Name: "benchmark", Namespace: namespace}}, nil
}

func (a *Adapter) DeleteManifest(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error) {
	a.record("DeleteManifest")
	if a.DeleteManifestFunc != nil {
		return a.DeleteManifestFunc(ctx, text, namespace)
	}
	return nil, nil
}

func (a *Adapter) JobStatus(ctx context.Context, name, namespace string) (kube.JobStatus, error) {
	a.record("JobStatus")
	if a.JobStatusFunc != nil {
		return a.JobStatusFunc(ctx, name, namespace)
	}
	return kube.JobStatus{Phase: kube.JobSucceeded}, nil
}

func (a *Adapter) DeleteJob(ctx context.Context, name, namespace string) (bool, error) {
	a.record("DeleteJob")
	if a.DeleteJobFunc != nil {
		return a.DeleteJobFunc(ctx, name, namespace)
	}
	return true, nil
}

func (a *Adapter) ListPodsForJob(ctx context.Context, name, namespace string) ([]kube.PodInfo, error) {
	a.record("ListPodsForJob")
	if a.ListPodsForJobFunc != nil {
		return a.ListPodsForJobFunc(ctx, name, namespace)
	}
	return nil, nil
}

func (a *Adapter) ListReleasesByLabel(ctx context.Context, label, namespace string) ([]kube.ReleaseSummary, error) {
	a.record("ListReleasesByLabel")
	if a.ListReleasesByLabelFunc != nil {
		return a.ListReleasesByLabelFunc(ctx, label, namespace)
	}
	return nil, nil
}

func (a *Adapter) DeleteResourcesByLabel(ctx context.Context, label, namespace string) error {
	a.record("DeleteResourcesByLabel")
	if a.DeleteResourcesByLabelFunc != nil {
		return a.DeleteResourcesByLabelFunc(ctx, label, namespace)
	}
	return nil
}

func (a *Adapter) ListJobs(ctx context.Context, namespace string) ([]kube.JobSummary, error) {
	a.record("ListJobs")
	if a.ListJobsFunc != nil {
		return a.ListJobsFunc(ctx, namespace)
	}
	return nil, nil
}

func (a *Adapter) StreamPodLog(ctx context.Context, pod, namespace string, tailLines int64, follow bool) (<-chan string, error) {
	a.record("StreamPodLog")
	if a.StreamPodLogFunc != nil {
		return a.StreamPodLogFunc(ctx, pod, namespace, tailLines, follow)
	}
	ch := make(chan string)
	close(ch)
	return ch, nil
}

var _ kube.Adapter = (*Adapter)(nil)
