package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFrom_FillsDocumentedDefaults(t *testing.T) {
	path := writeConfig(t, `
db:
  host: localhost
  db_name: primus
`)

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 600*time.Second, cfg.Readiness.EngineTimeout)
	assert.Equal(t, 3, cfg.Readiness.EngineMaxFailures)
	assert.Equal(t, "helm", cfg.Kube.HelmBinary)
	assert.Equal(t, "default", cfg.Kube.Namespace)
}

func TestLoadFrom_PreservesExplicitValuesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
http_port: 9090
scheduler:
  poll_interval: 1m
readiness:
  engine_max_failures: 7
`)

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, time.Minute, cfg.Scheduler.PollInterval)
	assert.Equal(t, 7, cfg.Readiness.EngineMaxFailures)
}

func TestLoadFrom_MissingFileReturnsConfigurationError(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
}

func TestLoadFrom_InvalidYAMLReturnsConfigurationError(t *testing.T) {
	path := writeConfig(t, "db: [this is not a mapping")

	_, err := LoadFrom(path)

	require.Error(t, err)
}

func TestEnvOverrides_WinOverFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
db:
  host: file-host
  password: file-secret
`)

	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_PASSWORD", "env-secret")
	t.Setenv("PEER_BASE_URL", "http://peer.internal:9000")

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.DB.Host)
	assert.Equal(t, "env-secret", cfg.DB.Password)
	assert.Equal(t, "http://peer.internal:9000", cfg.Peer.BaseURL)
}

func TestEnvOverrides_KubeconfigOnlyAppliedWhenFileOmitsIt(t *testing.T) {
	path := writeConfig(t, `
kube:
  kubeconfig: /etc/explicit/kubeconfig
`)

	t.Setenv("KUBECONFIG", "/home/user/.kube/config")

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, "/etc/explicit/kubeconfig", cfg.Kube.Kubeconfig, "an explicit file value must not be clobbered by KUBECONFIG")
}

func TestLoad_ReadsConfigPathEnvVar(t *testing.T) {
	path := writeConfig(t, `http_port: 7000`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.HTTPPort)
}
