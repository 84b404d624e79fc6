// Package reuse implements the Reuse Cache (spec §4.3): a content-addressed memoizer
// deciding whether a new campaign whose engine spec carries a values document can
// attach to an existing release instead of reinstalling.
package reuse

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/primus-bench/orchestrator/pkg/cleanup"
	"github.com/primus-bench/orchestrator/pkg/fingerprint"
	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/model"
	"github.com/primus-bench/orchestrator/pkg/store"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Reuse       bool
	ReleaseName string
}

// Cache decides reuse and derives deterministic release names. It is mutated only by
// the Scheduler's single-flight path (spec §4.3), so it needs no internal locking;
// the record itself is persisted to the Store for restart recovery.
type Cache struct {
	adapter  kube.Adapter
	reuses   *store.ReuseRecordStore
	releases *store.EngineReleaseStore
	cleaner  *cleanup.Engine
}

func New(adapter kube.Adapter, reuses *store.ReuseRecordStore, releases *store.EngineReleaseStore, cleaner *cleanup.Engine) *Cache {
	return &Cache{adapter: adapter, reuses: reuses, releases: releases, cleaner: cleaner}
}

// Evaluate implements the algorithm in spec §4.3 steps 1-4 for a values-document
// campaign. Callers without a values document should skip straight to deterministic
// naming via ReleaseNameFromCoreConfig and the Conflict Resolver (spec §4.6).
func (c *Cache) Evaluate(ctx context.Context, valuesText string, podSelectorFor func(releaseName string) string) (Decision, error) {
	fp := fingerprint.Of(valuesText)

	rec, err := c.reuses.Get(ctx)
	if err != nil {
		return Decision{}, err
	}

	if rec == nil {
		return Decision{Reuse: false}, nil
	}

	if rec.ValuesFingerprint == fp {
		release, err := c.releases.Get(ctx, rec.ReleaseID)
		if err != nil {
			return Decision{Reuse: false}, nil
		}
		status, err := c.adapter.ReleaseStatus(ctx, release.ReleaseName, release.Namespace)
		if err != nil || status.Phase != kube.ReleaseDeployed {
			log.Infof("reuse cache: record for fp %s is stale (release %s not deployed)", fp, release.ReleaseName)
			return Decision{Reuse: false}, nil
		}
		ready, err := c.adapter.PodReadiness(ctx, podSelectorFor(release.ReleaseName), release.Namespace)
		if err != nil || !ready {
			return Decision{Reuse: false}, nil
		}
		return Decision{Reuse: true, ReleaseName: release.ReleaseName}, nil
	}

	// Different fingerprint: tear down the stale release and clear the record.
	release, err := c.releases.Get(ctx, rec.ReleaseID)
	if err == nil {
		c.cleaner.TeardownRelease(ctx, release, nil)
	}
	if err := c.reuses.Clear(ctx); err != nil {
		return Decision{}, err
	}
	return Decision{Reuse: false}, nil
}

// Remember persists a ReuseRecord after a successful install whose input was a
// values document.
func (c *Cache) Remember(ctx context.Context, valuesText string, releaseID uuid.UUID) error {
	fp := fingerprint.Of(valuesText)
	return c.reuses.Set(ctx, &model.ReuseRecord{
		ValuesFingerprint: fp,
		ValuesText:        valuesText,
		ReleaseID:         releaseID,
	})
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
var runsOfDash = regexp.MustCompile(`-+`)

// Sanitize lowercases s, replaces non-alphanumerics with '-', collapses runs, strips
// leading/trailing '-', prepends 'v' if it starts with a digit, and caps length to 63
// (spec §4.3).
func Sanitize(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	s = runsOfDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "x"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "v" + s
	}
	if len(s) > 63 {
		s = s[:63]
		s = strings.TrimRight(s, "-")
	}
	return s
}

// ReleaseNameWithValues derives the deterministic release name when a values document
// was supplied: engine-<sanitized-model>-<fp[:8]>-<accel-class>-<accel-count>.
func ReleaseNameWithValues(modelIdentifier, valuesText, accelClass string, accelCount int) string {
	fp := fingerprint.Of(valuesText)
	return assembleName(modelIdentifier, fingerprint.Short(fp, 8), accelClass, accelCount)
}

// ReleaseNameFromCoreConfig derives the deterministic release name when no values
// document was supplied, hashing the core structured config instead.
func ReleaseNameFromCoreConfig(modelIdentifier string, coreConfig string, accelClass string, accelCount int) string {
	fp := fingerprint.Of(coreConfig)
	return assembleName(modelIdentifier, fingerprint.Short(fp, 8), accelClass, accelCount)
}

func assembleName(modelIdentifier, fpShort, accelClass string, accelCount int) string {
	name := fmt.Sprintf("engine-%s-%s-%s-%s",
		Sanitize(modelIdentifier), fpShort, Sanitize(accelClass), strconv.Itoa(accelCount))
	return Sanitize(name)
}
