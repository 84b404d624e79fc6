// Package executor implements the Sequential Executor (spec §4.7): drives one
// campaign through provision -> wait-engine -> run-jobs (ordered) -> terminal. Treated
// as a coroutine owned by the Scheduler Loop; MUST NOT be entered concurrently for the
// same campaign (enforced by the Scheduler's single-flight latch, not here).
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
	"github.com/primus-bench/orchestrator/pkg/cleanup"
	"github.com/primus-bench/orchestrator/pkg/fingerprint"
	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/readiness"
	"github.com/primus-bench/orchestrator/pkg/reuse"
	"github.com/primus-bench/orchestrator/pkg/store"
)

// JobSubmitter is the narrow surface the benchmark loop needs; it is satisfied
// directly by kube.Adapter, or by pkg/submission.Client when jobs are forwarded to a
// peer process's job-deploy surface instead (spec §4.9).
type JobSubmitter interface {
	ApplyManifest(ctx context.Context, text, namespace string) ([]kube.AppliedResource, error)
	JobStatus(ctx context.Context, name, namespace string) (kube.JobStatus, error)
	DeleteJob(ctx context.Context, name, namespace string) (bool, error)
}

// Step labels for the campaign's current_step observability field (spec §3).
const (
	StepEngineDeploy = "engine_deploy"
	stepBenchmarkFmt = "benchmark_%d_running"
)

// Config carries the chart path and default namespace the Executor installs into.
type Config struct {
	ChartPath        string
	DefaultNamespace string
}

// Executor drives campaigns end to end.
type Executor struct {
	adapter   kube.Adapter
	submitter JobSubmitter

	campaigns *store.CampaignStore
	releases  *store.EngineReleaseStore

	reuseCache *reuse.Cache

	engineMonitor *readiness.EngineMonitor
	jobMonitor    *readiness.JobMonitor

	cleaner *cleanup.Engine

	cfg Config
}

func New(
	adapter kube.Adapter,
	submitter JobSubmitter,
	campaigns *store.CampaignStore,
	releases *store.EngineReleaseStore,
	reuseCache *reuse.Cache,
	engineMonitor *readiness.EngineMonitor,
	jobMonitor *readiness.JobMonitor,
	cleaner *cleanup.Engine,
	cfg Config,
) *Executor {
	if submitter == nil {
		submitter = adapter
	}
	return &Executor{
		adapter:       adapter,
		submitter:     submitter,
		campaigns:     campaigns,
		releases:      releases,
		reuseCache:    reuseCache,
		engineMonitor: engineMonitor,
		jobMonitor:    jobMonitor,
		cleaner:       cleaner,
		cfg:           cfg,
	}
}

// Run drives campaign through its full lifecycle. The returned error is non-nil only
// when a Store write of a phase transition fails (including an UnrecoverableInternal
// rejection of an illegal transition); ordinary campaign failure is recorded on the
// campaign itself, not returned.
func (ex *Executor) Run(ctx context.Context, campaign *model.Campaign) error {
	now := time.Now()
	firstStep := StepEngineDeploy
	if campaign.SkipEngine {
		firstStep = fmt.Sprintf(stepBenchmarkFmt, 1)
	}
	phase := model.PhaseProcessing
	if err := ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{
		Phase:       &phase,
		CurrentStep: &firstStep,
		StartedAt:   &now,
	}); err != nil {
		return err
	}
	campaign.Phase = model.PhaseProcessing
	campaign.StartedAt = &now
	campaign.CurrentStep = firstStep

	if ex.checkCancelled(ctx, campaign.ID) {
		return ex.cancel(ctx, campaign)
	}

	if campaign.SkipEngine {
		ex.resolveSkipEngine(ctx, campaign)
	} else {
		if done, err := ex.provisionEngine(ctx, campaign); err != nil {
			return err
		} else if done {
			return nil
		}
	}

	if ex.checkCancelled(ctx, campaign.ID) {
		return ex.cancel(ctx, campaign)
	}

	for i, bench := range campaign.Benchmarks {
		if ex.checkCancelled(ctx, campaign.ID) {
			return ex.cancel(ctx, campaign)
		}

		step := fmt.Sprintf(stepBenchmarkFmt, i+1)
		_ = ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{CurrentStep: &step})

		if err := ex.runBenchmark(ctx, campaign, i, bench); err != nil {
			return err
		}
		if campaign.Phase.Terminal() {
			// runBenchmark already transitioned to failed/cancelled.
			return nil
		}

		if ex.checkCancelled(ctx, campaign.ID) {
			return ex.cancel(ctx, campaign)
		}
	}

	return ex.complete(ctx, campaign)
}

// resolveSkipEngine implements phase 2: best-effort lookup of a currently-running
// engine, recording a synthetic release id that Cleanup Engine must never tear down
// (invariant 3).
func (ex *Executor) resolveSkipEngine(ctx context.Context, campaign *model.Campaign) {
	releases, err := ex.adapter.ListReleasesByLabel(ctx, "app.kubernetes.io/component=engine", ex.namespaceFor(campaign))
	if err != nil || len(releases) == 0 {
		log.Infof("executor: skip_engine campaign %s found no running engine to attach to", campaign.ID)
		return
	}

	synthetic := &model.EngineRelease{
		ID:                uuid.New(),
		ReleaseName:       releases[0].Name,
		Namespace:         ex.namespaceFor(campaign),
		Phase:             model.EngineReleaseRunning,
		OwnedByController: false,
	}
	if err := ex.releases.Insert(ctx, synthetic); err == nil {
		_ = ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{EngineReleaseID: &synthetic.ID})
		campaign.EngineReleaseID = &synthetic.ID
	}
}

// provisionEngine implements phases 3-4. Returns done=true if Run should return now
// (campaign reached a terminal state).
func (ex *Executor) provisionEngine(ctx context.Context, campaign *model.Campaign) (bool, error) {
	spec := campaign.EngineSpec.AsSpec()
	if spec == nil {
		return true, ex.fail(ctx, campaign, "configuration error: campaign requires an engine but carries no engine spec")
	}
	if spec.ModelIdentifier == "" && !spec.HasValuesDocument() {
		return true, ex.fail(ctx, campaign, "configuration error: engine spec missing model_identifier")
	}

	namespace := ex.namespaceFor(campaign)

	var releaseName string
	if spec.HasValuesDocument() {
		releaseName = reuse.ReleaseNameWithValues(spec.ModelIdentifier, spec.ValuesText, spec.AccelClass, spec.AccelCount)
	} else {
		releaseName = reuse.ReleaseNameFromCoreConfig(spec.ModelIdentifier, coreConfigKey(spec), spec.AccelClass, spec.AccelCount)
	}

	if spec.HasValuesDocument() {
		decision, err := ex.reuseCache.Evaluate(ctx, spec.ValuesText, func(rn string) string { return "app.kubernetes.io/instance=" + rn })
		if err == nil && decision.Reuse {
			release, getErr := ex.releases.GetByName(ctx, decision.ReleaseName)
			if getErr == nil {
				_ = ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{EngineReleaseID: &release.ID})
				campaign.EngineReleaseID = &release.ID
				ex.incrementStep(ctx, campaign)
				return false, nil
			}
		}
	}

	decision, existing, err := ex.resolveConflict(ctx, releaseName, namespace, spec.ModelIdentifier)
	if err != nil {
		return true, ex.fail(ctx, campaign, "resource conflict resolution failed: "+err.Error())
	}

	switch decision {
	case conflictSkipInstall:
		_ = ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{EngineReleaseID: &existing.ID})
		campaign.EngineReleaseID = &existing.ID
		ex.incrementStep(ctx, campaign)
		return false, nil
	case conflictCleanupAndInstall:
		ex.cleanupBeforeInstall(ctx, existing, releaseName, namespace)
	}

	release := &model.EngineRelease{
		ID:                uuid.New(),
		ReleaseName:       releaseName,
		Namespace:         namespace,
		Phase:             model.EngineReleaseDeploying,
		ValuesFingerprint: valuesFingerprintOf(spec),
		ModelIdentifier:   spec.ModelIdentifier,
		OwnedByController: true,
	}
	if err := ex.releases.Insert(ctx, release); err != nil {
		return true, ex.fail(ctx, campaign, "failed to record engine release: "+err.Error())
	}

	if err := ex.adapter.InstallRelease(ctx, releaseName, ex.cfg.ChartPath, namespace, spec.ValuesText); err != nil {
		_ = ex.releases.UpdatePhase(ctx, release.ID, model.EngineReleaseFailed, err.Error())
		return true, ex.fail(ctx, campaign, "install failed: "+err.Error())
	}

	_ = ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{EngineReleaseID: &release.ID})
	campaign.EngineReleaseID = &release.ID

	result := ex.engineMonitor.Wait(ctx, releaseName, namespace, "app.kubernetes.io/instance="+releaseName, func() bool {
		return ex.checkCancelled(ctx, campaign.ID)
	})

	switch result.Outcome {
	case readiness.OutcomeReady:
		_ = ex.releases.UpdatePhase(ctx, release.ID, model.EngineReleaseRunning, "")
		if spec.HasValuesDocument() {
			_ = ex.reuseCache.Remember(ctx, spec.ValuesText, release.ID)
		}
		ex.incrementStep(ctx, campaign)
		return false, nil
	case readiness.OutcomeFailed, readiness.OutcomeTimedOut:
		_ = ex.releases.UpdatePhase(ctx, release.ID, model.EngineReleaseFailed, result.Reason)
		ex.cleaner.CleanupCampaign(ctx, campaign, result.Reason)
		return true, ex.fail(ctx, campaign, result.Reason)
	default: // cancelled
		return true, ex.cancel(ctx, campaign)
	}
}

// runBenchmark implements phase 5 for one benchmark: placeholder substitution, robust
// submission, JobRecord tracking, and the readiness wait.
func (ex *Executor) runBenchmark(ctx context.Context, campaign *model.Campaign, index int, bench model.BenchmarkSpec) error {
	releaseName, serviceName, podName := ex.engineIdentity(campaign)

	manifest := bench.ManifestText
	if releaseName != "" {
		manifest = substitutePlaceholders(manifest, releaseName, serviceName, podName)
	}

	namespace := bench.Namespace
	if namespace == "" {
		namespace = ex.namespaceFor(campaign)
	}

	applied, err := ex.submitter.ApplyManifest(ctx, manifest, namespace)
	deploymentError := false
	var jobName string
	if err != nil || len(applied) == 0 {
		// submission appears to fail; probe job_status for both the requested and
		// parsed name before giving up, since cluster API errors here are ambiguous
		// (spec §4.7 step 5b).
		candidate := parsedJobName(manifest)
		deploymentError = true
		jobName = candidate
		for _, probe := range []string{bench.DisplayName, candidate} {
			if probe == "" {
				continue
			}
			if status, probeErr := ex.submitter.JobStatus(ctx, probe, namespace); probeErr == nil && status.Phase != kube.JobNotFound {
				deploymentError = false
				jobName = probe
				break
			}
		}
	} else {
		jobName = applied[0].Name
	}

	record := model.JobRecord{
		Name:            jobName,
		OriginalName:    parsedJobName(bench.ManifestText),
		Namespace:       namespace,
		DeploymentError: deploymentError,
	}
	_ = ex.campaigns.AppendJob(ctx, campaign.ID, record)
	campaign.Jobs = append(campaign.Jobs, record)

	if deploymentError {
		reason := fmt.Sprintf("benchmark %d submission failed and could not be verified", index+1)
		ex.cleaner.CleanupCampaign(ctx, campaign, reason)
		return ex.fail(ctx, campaign, reason)
	}

	result := ex.jobMonitor.Wait(ctx, jobName, namespace, func() bool {
		return ex.checkCancelled(ctx, campaign.ID)
	})

	switch result.Outcome {
	case readiness.OutcomeSucceeded:
		ex.markJobTerminal(ctx, campaign, jobName, model.JobTerminalSucceeded)
		ex.incrementStep(ctx, campaign)
		return nil
	case readiness.OutcomeTimedOut:
		ex.markJobTerminal(ctx, campaign, jobName, model.JobTerminalTimeout)
		ex.cleaner.CleanupCampaign(ctx, campaign, result.Reason)
		return ex.fail(ctx, campaign, result.Reason)
	case readiness.OutcomeFailed, readiness.OutcomeDisappeared:
		ex.markJobTerminal(ctx, campaign, jobName, model.JobTerminalMaxFailures)
		ex.cleaner.CleanupCampaign(ctx, campaign, result.Reason)
		return ex.fail(ctx, campaign, result.Reason)
	default: // cancelled
		return ex.cancel(ctx, campaign)
	}
}

func (ex *Executor) markJobTerminal(ctx context.Context, campaign *model.Campaign, jobName, terminal string) {
	for i := range campaign.Jobs {
		if campaign.Jobs[i].Name == jobName {
			campaign.Jobs[i].TerminalState = terminal
		}
	}
	jobs := model.JobListJSON(campaign.Jobs)
	_ = ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{Jobs: &jobs})
}

func (ex *Executor) incrementStep(ctx context.Context, campaign *model.Campaign) {
	campaign.CompletedSteps++
	completed := campaign.CompletedSteps
	_ = ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{CompletedSteps: &completed})
}

func (ex *Executor) complete(ctx context.Context, campaign *model.Campaign) error {
	now := time.Now()
	phase := model.PhaseCompleted
	if err := ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{
		Phase:       &phase,
		CompletedAt: &now,
	}); err != nil {
		return err
	}
	campaign.Phase = model.PhaseCompleted
	campaign.CompletedAt = &now
	return nil
}

func (ex *Executor) fail(ctx context.Context, campaign *model.Campaign, reason string) error {
	now := time.Now()
	phase := model.PhaseFailed
	if err := ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{
		Phase:        &phase,
		CompletedAt:  &now,
		ErrorMessage: &reason,
	}); err != nil {
		if kind, ok := apperrors.KindOf(err); ok && kind == apperrors.KindUnrecoverableInternal {
			log.Errorf("executor: refusing non-monotonic transition for campaign %s: %v", campaign.ID, err)
		}
		return err
	}
	campaign.Phase = model.PhaseFailed
	campaign.CompletedAt = &now
	campaign.ErrorMessage = reason
	return nil
}

func (ex *Executor) cancel(ctx context.Context, campaign *model.Campaign) error {
	ex.cleaner.CleanupCampaign(ctx, campaign, "cancelled by user")
	now := time.Now()
	phase := model.PhaseCancelled
	msg := "cancelled by user"
	if err := ex.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{
		Phase:        &phase,
		CompletedAt:  &now,
		ErrorMessage: &msg,
	}); err != nil {
		return err
	}
	campaign.Phase = model.PhaseCancelled
	campaign.CompletedAt = &now
	campaign.ErrorMessage = msg
	return nil
}

func (ex *Executor) checkCancelled(ctx context.Context, id uuid.UUID) bool {
	fresh, err := ex.campaigns.Get(ctx, id)
	if err != nil {
		return false
	}
	return fresh.CancelRequested
}

func (ex *Executor) namespaceFor(campaign *model.Campaign) string {
	if spec := campaign.EngineSpec.AsSpec(); spec != nil && spec.Namespace != "" {
		return spec.Namespace
	}
	return ex.cfg.DefaultNamespace
}

// engineIdentity resolves the release/service/pod names used for placeholder
// substitution. When skip_engine resolved no running engine, all three are empty and
// placeholders are left literal (spec §4.7 step 5a).
func (ex *Executor) engineIdentity(campaign *model.Campaign) (releaseName, serviceName, podName string) {
	if campaign.EngineReleaseID == nil {
		return "", "", ""
	}
	release, err := ex.releases.Get(context.Background(), *campaign.EngineReleaseID)
	if err != nil {
		return "", "", ""
	}
	return release.ReleaseName, release.ReleaseName, predictablePodName(release.ReleaseName, nil, true)
}

func coreConfigKey(spec *model.EngineSpec) string {
	return fmt.Sprintf("%s|%d|%d|%d|%d|%s|%s", spec.ModelIdentifier, spec.ParallelTensor, spec.ParallelPipeline,
		spec.MaxSeqs, spec.BlockSize, spec.Dtype, spec.Quantization)
}

func valuesFingerprintOf(spec *model.EngineSpec) string {
	if spec.HasValuesDocument() {
		return fingerprint.Of(spec.ValuesText)
	}
	return ""
}

// parsedJobName extracts the first top-level metadata.name value as a fallback
// candidate when submission's own return value is ambiguous (spec §4.7 step 5b); the
// authoritative parse lives in pkg/kube's manifest decoder.
func parsedJobName(manifestText string) string {
	for _, line := range strings.Split(manifestText, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "name:") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "name:"))
		}
	}
	return ""
}
