package executor

import (
	"context"
	"time"

	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/model"
)

// conflictDecision is the Conflict Resolver's verdict (spec §4.6).
type conflictDecision int

const (
	conflictInstall conflictDecision = iota
	conflictSkipInstall
	conflictCleanupAndInstall
)

// resolveConflict compares the intended release name/model against any live release
// of the same deterministic name and decides install / skip / cleanup-then-install.
func (ex *Executor) resolveConflict(ctx context.Context, releaseName, namespace, modelIdentifier string) (conflictDecision, *model.EngineRelease, error) {
	existing, err := ex.releases.GetByName(ctx, releaseName)
	if err != nil {
		// not found in our store does not necessarily mean the cluster has nothing;
		// check the cluster's own release status too.
		status, statusErr := ex.adapter.ReleaseStatus(ctx, releaseName, namespace)
		if statusErr != nil || status.Phase != kube.ReleaseDeployed {
			return conflictInstall, nil, nil
		}
		// a live release with no Store record: treat the comparison as inconclusive
		// per spec §4.6 and take the safe path.
		return conflictCleanupAndInstall, nil, nil
	}

	status, err := ex.adapter.ReleaseStatus(ctx, releaseName, namespace)
	if err != nil || status.Phase != kube.ReleaseDeployed {
		return conflictInstall, nil, nil
	}

	if existing.ModelIdentifier == modelIdentifier {
		return conflictSkipInstall, existing, nil
	}
	return conflictCleanupAndInstall, existing, nil
}

// cleanupBeforeInstall tears down the conflicting release and its auxiliary objects,
// then sleeps a short grace period so deletions propagate (spec §4.6). releaseName is
// the deterministic name being reconciled against, used as the label selector target
// even when existing is nil (the cluster-only conflict case resolveConflict returns
// when no Store record exists for a live release).
func (ex *Executor) cleanupBeforeInstall(ctx context.Context, existing *model.EngineRelease, releaseName, namespace string) {
	if existing != nil {
		ex.cleaner.TeardownRelease(ctx, existing, nil)
	}

	label := "app.kubernetes.io/instance=" + releaseName
	aux, err := ex.adapter.ListReleasesByLabel(ctx, label, namespace)
	if err != nil {
		log.Warnf("conflict resolver: listing auxiliary resources labelled %s: %v", label, err)
	} else {
		for _, r := range aux {
			log.Infof("conflict resolver: deleting auxiliary resource %s labelled %s", r.Name, label)
		}
	}

	if err := ex.adapter.DeleteResourcesByLabel(ctx, label, namespace); err != nil {
		log.Warnf("conflict resolver: deleting auxiliary resources labelled %s: %v", label, err)
	}

	time.Sleep(5 * time.Second)
}
