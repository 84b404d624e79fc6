package kube

import (
	"bufio"
	"context"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
)

// PodReadiness reports true iff at least one pod matches the selector, all matching
// pods are Running, and every container in each pod is ready (spec §4.1).
func (c *Client) PodReadiness(ctx context.Context, selectorByRelease, namespace string) (bool, error) {
	pods, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selectorByRelease,
	})
	if err != nil {
		return false, wrapKubeErr("listing pods", err)
	}
	if len(pods.Items) == 0 {
		return false, nil
	}
	for _, pod := range pods.Items {
		if pod.Status.Phase != corev1.PodRunning {
			return false, nil
		}
		for _, cs := range pod.Status.ContainerStatuses {
			if !cs.Ready {
				return false, nil
			}
		}
	}
	return true, nil
}

// JobStatus derives a JobPhase from batchv1.Job status fields and conditions,
// mirroring dataplane_installer/job.go's handleExistingJob branching.
func (c *Client) JobStatus(ctx context.Context, name, namespace string) (JobStatus, error) {
	job, err := c.Clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return JobStatus{Phase: JobNotFound}, nil
	}
	if err != nil {
		return JobStatus{}, wrapKubeErr("getting job status", err)
	}

	status := JobStatus{
		ActiveCount:    job.Status.Active,
		SucceededCount: job.Status.Succeeded,
		FailedCount:    job.Status.Failed,
	}
	if job.Status.StartTime != nil {
		t := job.Status.StartTime.Unix()
		status.StartedAt = &t
	}
	if job.Status.CompletionTime != nil {
		t := job.Status.CompletionTime.Unix()
		status.CompletedAt = &t
	}

	switch {
	case job.Status.Succeeded > 0:
		status.Phase = JobSucceeded
	case job.Status.Failed > 0:
		status.Phase = JobFailed
		status.FailureReason = extractFailureReason(job)
	case job.Status.Active > 0:
		status.Phase = JobRunning
	default:
		status.Phase = JobPending
	}
	return status, nil
}

// extractFailureReason reads the message off a Job's JobFailed condition, mirroring
// dataplane_installer/job.go's condition-scanning approach.
func extractFailureReason(job *batchv1.Job) string {
	for _, cond := range job.Status.Conditions {
		if cond.Type == batchv1.JobFailed && cond.Status == corev1.ConditionTrue {
			if cond.Message != "" {
				return cond.Message
			}
			return cond.Reason
		}
	}
	return "job reported failed pod count without a JobFailed condition"
}

// DeleteJob deletes a Job with background propagation, never raising on absence.
func (c *Client) DeleteJob(ctx context.Context, name, namespace string) (bool, error) {
	propagation := metav1.DeletePropagationBackground
	err := c.Clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if apierrors.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, wrapKubeErr("deleting job", err)
	}
	return true, nil
}

// ListPodsForJob lists pods created by a Job via its standard job-name label.
func (c *Client) ListPodsForJob(ctx context.Context, name, namespace string) ([]PodInfo, error) {
	pods, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + name,
	})
	if err != nil {
		return nil, wrapKubeErr("listing pods for job", err)
	}
	out := make([]PodInfo, 0, len(pods.Items))
	for _, pod := range pods.Items {
		ready := true
		containers := make([]string, 0, len(pod.Spec.Containers))
		for _, ctr := range pod.Spec.Containers {
			containers = append(containers, ctr.Name)
		}
		for _, cs := range pod.Status.ContainerStatuses {
			if !cs.Ready {
				ready = false
			}
		}
		out = append(out, PodInfo{
			PodName:    pod.Name,
			Phase:      string(pod.Status.Phase),
			Ready:      ready,
			Containers: containers,
		})
	}
	return out, nil
}

// ListJobs lists every Job in a namespace, for the Cleanup Engine's orphan-discovery
// pass (spec §4.5 step 2): it needs the full set to apply the name-pattern heuristic,
// not a label filter, since crashed submissions may predate any label being set.
func (c *Client) ListJobs(ctx context.Context, namespace string) ([]JobSummary, error) {
	jobs, err := c.Clientset.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapKubeErr("listing jobs", err)
	}
	out := make([]JobSummary, 0, len(jobs.Items))
	for _, job := range jobs.Items {
		phase := JobPending
		switch {
		case job.Status.Succeeded > 0:
			phase = JobSucceeded
		case job.Status.Failed > 0:
			phase = JobFailed
		case job.Status.Active > 0:
			phase = JobRunning
		}
		out = append(out, JobSummary{Name: job.Name, Namespace: job.Namespace, Phase: phase})
	}
	return out, nil
}

// ListReleasesByLabel lists Deployments matching a label, used by the Executor's
// skip_engine lookup of a running engine and the Conflict Resolver's auxiliary listing.
func (c *Client) ListReleasesByLabel(ctx context.Context, label, namespace string) ([]ReleaseSummary, error) {
	deployments, err := c.Clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: label,
	})
	if err != nil {
		return nil, wrapKubeErr("listing deployments by label", err)
	}
	out := make([]ReleaseSummary, 0, len(deployments.Items))
	for _, d := range deployments.Items {
		out = append(out, ReleaseSummary{
			Name:          d.Name,
			Labels:        d.Labels,
			Replicas:      d.Status.Replicas,
			ReadyReplicas: d.Status.ReadyReplicas,
		})
	}
	return out, nil
}

// auxiliaryKindGVRs is the set of non-Job kinds a helm release leaves behind as
// auxiliary objects (spec §4.6's cleanup-and-install path); Jobs are handled by the
// Cleanup Engine's own job-first pass, not here.
var auxiliaryKindGVRs = map[string]schema.GroupVersionResource{
	"Deployment": {Group: "apps", Version: "v1", Resource: "deployments"},
	"Service":    {Group: "", Version: "v1", Resource: "services"},
	"ConfigMap":  {Group: "", Version: "v1", Resource: "configmaps"},
	"Secret":     {Group: "", Version: "v1", Resource: "secrets"},
}

// DeleteResourcesByLabel deletes every auxiliary object matching label in namespace,
// across the kinds a conflicting release may have left behind. Used by the Conflict
// Resolver's cleanup-and-install path (spec §4.6) to actually tear down what
// ListReleasesByLabel discovers, rather than merely enumerating it.
func (c *Client) DeleteResourcesByLabel(ctx context.Context, label, namespace string) error {
	for kind, gvr := range auxiliaryKindGVRs {
		list, err := c.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{
			LabelSelector: label,
		})
		if err != nil {
			return wrapKubeErr("listing "+kind+" resources for label delete", err)
		}
		for _, item := range list.Items {
			err := c.Dynamic.Resource(gvr).Namespace(namespace).Delete(ctx, item.GetName(), metav1.DeleteOptions{})
			if err != nil && !apierrors.IsNotFound(err) {
				return wrapKubeErr("deleting "+kind+" "+item.GetName(), err)
			}
		}
	}
	return nil
}

// StreamPodLog streams a pod's log lines onto a channel, closing it on EOF or ctx
// cancellation.
func (c *Client) StreamPodLog(ctx context.Context, pod, namespace string, tailLines int64, follow bool) (<-chan string, error) {
	opts := &corev1.PodLogOptions{Follow: follow}
	if tailLines > 0 {
		opts.TailLines = &tailLines
	}
	req := c.Clientset.CoreV1().Pods(namespace).GetLogs(pod, opts)
	stream, err := req.Stream(ctx)
	if err != nil {
		return nil, wrapKubeErr("streaming pod log", err)
	}

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		defer stream.Close()
		scanner := bufio.NewScanner(stream)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case lines <- scanner.Text():
			}
		}
	}()
	return lines, nil
}

func wrapKubeErr(action string, err error) error {
	return apperrors.New().
		WithKind(apperrors.KindTransient).
		WithCode(apperrors.CodeKubeOperationError).
		WithMessage(action).
		WithError(err).Err()
}
