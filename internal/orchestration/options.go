package orchestration

import (
	"time"

	"github.com/imamik/edgefleet/internal/config"
)

const (
	defaultAPIPort       = 6443
	defaultInstallScript = "install-k3s.sh"
	defaultNamespace     = "default"
	defaultFieldManager  = "edgefleet"
	defaultDrainTimeout  = 2 * time.Minute

	defaultRecreateTimeout = 2 * time.Minute
	defaultFleetTimeout    = 10 * time.Second
)

// Options tunes a pipeline run.
type Options struct {
	FilesDir      string
	InstallScript string
	SettleDelay   time.Duration
	APIPort       int

	// TokenPath is a local copy of the join token, tried before the master.
	TokenPath string

	// Concurrency bounds the worker fan-out. Values below 1 mean sequential.
	Concurrency int

	Namespace     string
	FieldManager  string
	RecreatePause time.Duration
	// RecreateTimeout bounds the wait for a recreated object to disappear.
	RecreateTimeout time.Duration

	Monitoring MonitoringOptions
}

// MonitoringOptions controls the monitoring stack on the master.
type MonitoringOptions struct {
	Enabled         bool
	Namespace       string
	Release         string
	ChartVersion    string
	GrafanaNodePort int32
	RolloutTimeout  time.Duration
}

// OptionsFromConfig maps the configuration file onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FilesDir:        cfg.Files.Dir,
		InstallScript:   cfg.Master.InstallScript,
		SettleDelay:     cfg.Master.SettleDelay,
		APIPort:         cfg.Master.APIPort,
		TokenPath:       cfg.Token.LocalPath,
		Concurrency:     cfg.Workers.Concurrency,
		Namespace:       cfg.Manifests.Namespace,
		FieldManager:    cfg.Manifests.FieldManager,
		RecreatePause:   cfg.Manifests.RecreatePause,
		RecreateTimeout: cfg.Manifests.RecreateTimeout,
		Monitoring: MonitoringOptions{
			Enabled:         cfg.Monitoring.Enabled,
			Namespace:       cfg.Monitoring.Namespace,
			Release:         cfg.Monitoring.Release,
			ChartVersion:    cfg.Monitoring.ChartVersion,
			GrafanaNodePort: cfg.Monitoring.GrafanaNodePort,
			RolloutTimeout:  cfg.Monitoring.RolloutTimeout,
		},
	}
}

func (o Options) withDefaults() Options {
	if o.InstallScript == "" {
		o.InstallScript = defaultInstallScript
	}
	if o.APIPort == 0 {
		o.APIPort = defaultAPIPort
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if o.FieldManager == "" {
		o.FieldManager = defaultFieldManager
	}
	if o.RecreateTimeout <= 0 {
		o.RecreateTimeout = defaultRecreateTimeout
	}
	if o.Monitoring.Namespace == "" {
		o.Monitoring.Namespace = "monitoring"
	}
	if o.Monitoring.Release == "" {
		o.Monitoring.Release = "prometheus-operator"
	}
	if o.Monitoring.GrafanaNodePort == 0 {
		o.Monitoring.GrafanaNodePort = 32000
	}
	if o.Monitoring.RolloutTimeout == 0 {
		o.Monitoring.RolloutTimeout = 5 * time.Minute
	}
	return o
}
