// Package cleanup implements the Cleanup Engine (spec §4.5): guarantees that on any
// non-successful terminal transition of a campaign, no resources it created remain.
// Cleanup order is jobs-first, engine-last per the REDESIGN FLAG in spec §9.
package cleanup

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/metrics"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/store"
)

// Engine is best-effort and non-throwing: callers read Outcome.Successful rather than
// an error, matching cleanup_campaign's contract.
type Engine struct {
	adapter  kube.Adapter
	releases *store.EngineReleaseStore
	campaigns *store.CampaignStore
}

func New(adapter kube.Adapter, releases *store.EngineReleaseStore, campaigns *store.CampaignStore) *Engine {
	return &Engine{adapter: adapter, releases: releases, campaigns: campaigns}
}

// Outcome records what cleanup accomplished; CleanupCampaign also writes it onto the
// campaign's cleanup_attempted/cleanup_successful fields.
type Outcome struct {
	Attempted bool
	Successful bool
}

// CleanupCampaign tears down every resource campaign created: jobs first (explicit
// JobRecords, then orphan discovery), engine release last, only if no other active
// campaign still references it. Idempotent: a second call on an already-cleaned-up
// campaign is a no-op since there is nothing left to find.
func (e *Engine) CleanupCampaign(ctx context.Context, campaign *model.Campaign, reason string) Outcome {
	if campaign.CleanupAttempted && campaign.CleanupSuccessful {
		return Outcome{Attempted: true, Successful: true}
	}

	success := true

	for _, job := range campaign.Jobs {
		if job.TerminalState == model.JobTerminalSucceeded {
			continue
		}
		if _, err := e.adapter.DeleteJob(ctx, job.Name, job.Namespace); err != nil {
			log.Warnf("cleanup: failed to delete job %s/%s for campaign %s: %v", job.Namespace, job.Name, campaign.ID, err)
			success = false
		}
	}

	e.discoverAndDeleteOrphanJobs(ctx, campaign)

	if !campaign.SkipEngine && campaign.EngineReleaseID != nil {
		if err := e.teardownEngineIfUnshared(ctx, campaign); err != nil {
			log.Warnf("cleanup: engine teardown failed for campaign %s: %v", campaign.ID, err)
			success = false
		}
	}

	log.Infof("cleanup: campaign %s cleanup complete (reason=%s, successful=%v)", campaign.ID, reason, success)
	outcomeLabel := "successful"
	if !success {
		outcomeLabel = "failed"
	}
	metrics.CleanupOutcomesTotal.WithLabelValues(outcomeLabel).Inc()
	attempted := true
	campaign.CleanupAttempted = true
	campaign.CleanupSuccessful = success
	_ = e.campaigns.Update(ctx, campaign.ID, store.CampaignPatch{CleanupAttempted: &attempted, CleanupSuccessful: &success})
	return Outcome{Attempted: true, Successful: success}
}

// discoverAndDeleteOrphanJobs recovers from crashes between "job applied" and
// "JobRecord persisted" by matching live jobs against a name-pattern heuristic
// (spec §4.5 step 2).
func (e *Engine) discoverAndDeleteOrphanJobs(ctx context.Context, campaign *model.Campaign) {
	idPrefix := strings.ToLower(campaign.ID.String())[:8]

	for _, b := range campaign.Benchmarks {
		jobs, err := e.adapter.ListJobs(ctx, b.Namespace)
		if err != nil {
			log.Warnf("cleanup: orphan discovery: listing jobs in %s: %v", b.Namespace, err)
			continue
		}
		for _, job := range jobs {
			if job.Phase == kube.JobSucceeded {
				continue
			}
			if !orphanMatches(job.Name, idPrefix, b.ManifestText, campaign.ID.String()) {
				continue
			}
			if _, err := e.adapter.DeleteJob(ctx, job.Name, job.Namespace); err != nil {
				log.Warnf("cleanup: orphan discovery: deleting job %s/%s: %v", job.Namespace, job.Name, err)
			}
		}
	}
}

func orphanMatches(jobName, idPrefix, manifestText, campaignID string) bool {
	lowerName := strings.ToLower(jobName)
	if strings.Contains(lowerName, idPrefix) {
		return true
	}
	if strings.HasPrefix(lowerName, "benchmark") {
		return true
	}
	if strings.Contains(manifestText, campaignID) {
		return true
	}
	return false
}

// teardownEngineIfUnshared checks the Store for other active campaigns referencing the
// same release before tearing it down (spec §4.5 step 3).
func (e *Engine) teardownEngineIfUnshared(ctx context.Context, campaign *model.Campaign) error {
	release, err := e.releases.Get(ctx, *campaign.EngineReleaseID)
	if err != nil {
		return err
	}

	shared, err := e.isSharedByActiveCampaign(ctx, campaign.ID, release.ID)
	if err != nil {
		return err
	}
	if shared {
		log.Infof("cleanup: engine release %s still referenced by another active campaign; skipping teardown", release.ReleaseName)
		return nil
	}

	e.TeardownRelease(ctx, release, campaign)
	return nil
}

func (e *Engine) isSharedByActiveCampaign(ctx context.Context, excludeID, releaseID uuid.UUID) (bool, error) {
	for _, phase := range []model.Phase{model.PhasePending, model.PhaseProcessing} {
		others, err := e.campaigns.ListByStatus(ctx, phase)
		if err != nil {
			return false, err
		}
		for _, other := range others {
			if other.ID == excludeID {
				continue
			}
			if other.EngineReleaseID != nil && *other.EngineReleaseID == releaseID {
				return true, nil
			}
		}
	}
	return false, nil
}

// TeardownRelease uninstalls a release via the Kube Adapter, falling back to a direct
// uninstall-by-name if the first attempt fails, and marks it cleaned_up in the Store.
// campaign may be nil when invoked from the Reuse Cache's stale-record path, which has
// no single owning campaign.
func (e *Engine) TeardownRelease(ctx context.Context, release *model.EngineRelease, campaign *model.Campaign) {
	if !release.OwnedByController {
		log.Infof("cleanup: release %s was not created by the controller; leaving it in place", release.ReleaseName)
		return
	}

	ok, err := e.adapter.UninstallRelease(ctx, release.ReleaseName, release.Namespace)
	if err != nil || !ok {
		log.Warnf("cleanup: uninstall_release failed for %s, retrying by name: %v", release.ReleaseName, err)
		time.Sleep(time.Second)
		_, _ = e.adapter.UninstallRelease(ctx, release.ReleaseName, release.Namespace)
	}

	if err := e.releases.UpdatePhase(ctx, release.ID, model.EngineReleaseCleanedUp, ""); err != nil {
		log.Warnf("cleanup: failed to mark release %s cleaned_up: %v", release.ReleaseName, err)
	}
}
