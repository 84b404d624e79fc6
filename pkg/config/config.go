// Package config loads the campaign controller's configuration from a YAML file
// named by CONFIG_PATH, with environment variables overriding secret fields.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
)

// DatabaseConfig describes the Postgres connection backing the Campaign Store.
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"db_name"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxIdleConn  int    `yaml:"max_idle_conn"`
	MaxOpenConn  int    `yaml:"max_open_conn"`
}

func (d *DatabaseConfig) applyDefaults() {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxIdleConn == 0 {
		d.MaxIdleConn = 5
	}
	if d.MaxOpenConn == 0 {
		d.MaxOpenConn = 20
	}
}

// KubeConfig describes how the Kube Adapter reaches a cluster.
type KubeConfig struct {
	Kubeconfig       string `yaml:"kubeconfig"`
	Namespace        string `yaml:"namespace"`
	HelmBinary       string `yaml:"helm_binary"`
	KubectlBinary    string `yaml:"kubectl_binary"`
}

func (k *KubeConfig) applyDefaults() {
	if k.HelmBinary == "" {
		k.HelmBinary = "helm"
	}
	if k.KubectlBinary == "" {
		k.KubectlBinary = "kubectl"
	}
	if k.Namespace == "" {
		k.Namespace = "default"
	}
}

// SchedulerConfig controls the scheduler loop's cadence (spec §4.8).
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MinInterval  time.Duration `yaml:"min_interval"`
	MaxInterval  time.Duration `yaml:"max_interval"`
}

func (s *SchedulerConfig) applyDefaults() {
	if s.PollInterval == 0 {
		s.PollInterval = 30 * time.Second
	}
	if s.MinInterval == 0 {
		s.MinInterval = 5 * time.Second
	}
	if s.MaxInterval == 0 {
		s.MaxInterval = time.Hour
	}
}

// ReadinessConfig controls both the engine and job readiness state machines (spec §4.4).
type ReadinessConfig struct {
	EngineTimeout    time.Duration `yaml:"engine_timeout"`
	EngineMaxFailures int          `yaml:"engine_max_failures"`
	EngineRetryDelay  time.Duration `yaml:"engine_retry_delay"`
	EnginePollPeriod  time.Duration `yaml:"engine_poll_period"`

	JobTimeout     time.Duration `yaml:"job_timeout"`
	JobMaxFailures int           `yaml:"job_max_failures"`
	JobRetryDelay  time.Duration `yaml:"job_retry_delay"`
	JobPollPeriod  time.Duration `yaml:"job_poll_period"`
}

func (r *ReadinessConfig) applyDefaults() {
	if r.EngineTimeout == 0 {
		r.EngineTimeout = 600 * time.Second
	}
	if r.EngineMaxFailures == 0 {
		r.EngineMaxFailures = 3
	}
	if r.EngineRetryDelay == 0 {
		r.EngineRetryDelay = 30 * time.Second
	}
	if r.EnginePollPeriod == 0 {
		r.EnginePollPeriod = 10 * time.Second
	}
	if r.JobTimeout == 0 {
		r.JobTimeout = 3600 * time.Second
	}
	if r.JobMaxFailures == 0 {
		r.JobMaxFailures = 3
	}
	if r.JobRetryDelay == 0 {
		r.JobRetryDelay = 60 * time.Second
	}
	if r.JobPollPeriod == 0 {
		r.JobPollPeriod = 30 * time.Second
	}
}

// PeerConfig describes the other cooperating process for the External Submission Adapter.
type PeerConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryCount    int           `yaml:"retry_count"`
	RetryWaitTime time.Duration `yaml:"retry_wait_time"`
}

func (p *PeerConfig) applyDefaults() {
	if p.Timeout == 0 {
		p.Timeout = 15 * time.Second
	}
	if p.RetryCount == 0 {
		p.RetryCount = 3
	}
	if p.RetryWaitTime == 0 {
		p.RetryWaitTime = time.Second
	}
}

// Config is the root configuration document.
type Config struct {
	HTTPPort  int             `yaml:"http_port"`
	ChartPath string          `yaml:"chart_path"`
	DB        DatabaseConfig  `yaml:"db"`
	Kube      KubeConfig      `yaml:"kube"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Peer      PeerConfig      `yaml:"peer"`
	LogLevel  string          `yaml:"log_level"`
}

func (c *Config) applyDefaults() {
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.DB.applyDefaults()
	c.Kube.applyDefaults()
	c.Scheduler.applyDefaults()
	c.Readiness.applyDefaults()
	c.Peer.applyDefaults()
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("KUBECONFIG"); v != "" && c.Kube.Kubeconfig == "" {
		c.Kube.Kubeconfig = v
	}
	if v := os.Getenv("PEER_BASE_URL"); v != "" {
		c.Peer.BaseURL = v
	}
}

// Load reads the YAML document at CONFIG_PATH (default "config.yaml"), applies
// environment overrides for secrets, and fills in documented defaults.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and parses the YAML document at the given path.
func LoadFrom(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindConfigurationError).
			WithCode(apperrors.CodeInvalidArgument).
			WithMessagef("reading config file %s", path).
			WithError(err).Err()
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindConfigurationError).
			WithCode(apperrors.CodeInvalidArgument).
			WithMessagef("parsing config file %s", path).
			WithError(err).Err()
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}
