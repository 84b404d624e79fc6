package kube

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
)

// InstallRelease installs or upgrades a chart release via the helm binary, mirroring
// bootstrap/installer/pkg/stage/helm.go's Run. Values text, when non-empty, is piped
// via -f - instead of the teacher's on-disk values file, since the Controller's values
// document arrives as an in-memory blob.
func (c *Client) InstallRelease(ctx context.Context, releaseName, chartPath, namespace, valuesText string) error {
	if err := c.ensureNamespace(ctx, namespace, releaseName); err != nil {
		return err
	}

	chart := chartPath
	if chart == "" {
		chart = c.ChartPath
	}

	args := []string{
		"upgrade", "--install", releaseName, chart,
		"--namespace", namespace,
		"--create-namespace",
	}
	if valuesText != "" {
		args = append(args, "-f", "-")
	}

	cmd := exec.CommandContext(ctx, c.HelmBinary, args...)
	if valuesText != "" {
		cmd.Stdin = strings.NewReader(valuesText)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "another operation") || strings.Contains(string(output), "already exists") {
			return apperrors.New().
				WithKind(apperrors.KindResourceConflict).
				WithCode(apperrors.CodeReleaseConflict).
				WithMessagef("release %s conflicts with a different live release", releaseName).
				WithError(err).Err()
		}
		return apperrors.New().
			WithKind(apperrors.KindTransient).
			WithCode(apperrors.CodeKubeOperationError).
			WithMessagef("helm install failed for release %s: %s", releaseName, string(output)).
			WithError(err).Err()
	}
	return nil
}

// UninstallRelease never raises on absence: a "not found" release counts as removed and
// returns true. It returns false only together with an error, when helm uninstall fails
// for any other reason.
func (c *Client) UninstallRelease(ctx context.Context, releaseName, namespace string) (bool, error) {
	args := []string{"uninstall", releaseName, "--namespace", namespace}
	cmd := exec.CommandContext(ctx, c.HelmBinary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "not found") {
			return true, nil
		}
		return false, apperrors.New().
			WithKind(apperrors.KindTransient).
			WithCode(apperrors.CodeKubeOperationError).
			WithMessagef("helm uninstall failed for release %s: %s", releaseName, string(output)).
			WithError(err).Err()
	}
	return true, nil
}

// ReleaseStatus inspects `helm status -o json` output for the status field, matching
// the teacher's string-matching approach rather than a full JSON unmarshal, since the
// status vocabulary is small and closed.
func (c *Client) ReleaseStatus(ctx context.Context, releaseName, namespace string) (ReleaseStatus, error) {
	args := []string{"status", releaseName, "--namespace", namespace, "-o", "json"}
	cmd := exec.CommandContext(ctx, c.HelmBinary, args...)
	output, err := cmd.CombinedOutput()

	if err != nil {
		if strings.Contains(string(output), "not found") {
			return ReleaseStatus{Phase: ReleaseUnknown, Description: "release not installed"}, nil
		}
		return ReleaseStatus{Phase: ReleaseUnknown, Description: fmt.Sprintf("status query failed: %v", err)}, nil
	}

	out := string(output)
	switch {
	case strings.Contains(out, `"status":"deployed"`):
		return ReleaseStatus{Phase: ReleaseDeployed, Description: "deployed"}, nil
	case strings.Contains(out, `"status":"pending-install"`):
		return ReleaseStatus{Phase: ReleasePendingInstall, Description: "pending-install"}, nil
	case strings.Contains(out, `"status":"pending-upgrade"`):
		return ReleaseStatus{Phase: ReleasePendingUpgrade, Description: "pending-upgrade"}, nil
	case strings.Contains(out, `"status":"failed"`):
		return ReleaseStatus{Phase: ReleaseFailed, Description: "failed"}, nil
	default:
		return ReleaseStatus{Phase: ReleaseUnknown, Description: "unrecognized status"}, nil
	}
}

// ensureNamespace recreates the teacher's namespace-with-Helm-labels workaround so a
// plain `--create-namespace` doesn't leave the namespace unmanaged by Helm.
func (c *Client) ensureNamespace(ctx context.Context, namespace, releaseName string) error {
	getCmd := exec.CommandContext(ctx, c.KubectlBinary, "get", "namespace", namespace)
	if err := getCmd.Run(); err == nil {
		return nil
	}

	manifest := fmt.Sprintf(`apiVersion: v1
kind: Namespace
metadata:
  name: %s
  labels:
    app.kubernetes.io/managed-by: Helm
  annotations:
    meta.helm.sh/release-name: %s
    meta.helm.sh/release-namespace: %s
`, namespace, releaseName, namespace)

	applyCmd := exec.CommandContext(ctx, c.KubectlBinary, "apply", "-f", "-")
	applyCmd.Stdin = strings.NewReader(manifest)
	output, err := applyCmd.CombinedOutput()
	if err != nil {
		return apperrors.New().
			WithKind(apperrors.KindTransient).
			WithCode(apperrors.CodeKubeOperationError).
			WithMessagef("creating namespace %s: %s", namespace, string(output)).
			WithError(err).Err()
	}
	return nil
}
