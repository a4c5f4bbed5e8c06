package config

import "time"

// Config is the edgefleet configuration file (edgefleet.yaml).
type Config struct {
	Registry   RegistryConfig   `yaml:"registry"`
	Files      FilesConfig      `yaml:"files"`
	Master     MasterConfig     `yaml:"master"`
	Token      TokenConfig      `yaml:"token"`
	SSH        SSHConfig        `yaml:"ssh"`
	Workers    WorkersConfig    `yaml:"workers"`
	Manifests  ManifestsConfig  `yaml:"manifests"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Server     ServerConfig     `yaml:"server"`
	Backup     BackupConfig     `yaml:"backup"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RegistryConfig locates the node registry database.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// FilesConfig locates the deployment bundle (install script, manifests, models).
type FilesConfig struct {
	Dir string `yaml:"dir"`
}

// MasterConfig controls control-plane bootstrap.
type MasterConfig struct {
	// InstallScript is the file name of the install script inside the files dir.
	InstallScript string `yaml:"install_script"`

	// SettleDelay is waited after install before the API is contacted.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// Kubeconfig, when set, is used instead of fetching the kubeconfig from the master.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`

	APIPort int `yaml:"api_port"`
}

// TokenConfig controls join token retrieval.
type TokenConfig struct {
	// LocalPath is tried first when set.
	LocalPath string `yaml:"local_path,omitempty"`
}

// SSHConfig controls the remote executor.
type SSHConfig struct {
	Port            int           `yaml:"port"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
	CommandAttempts int           `yaml:"command_attempts"`
	CommandDelay    time.Duration `yaml:"command_delay"`
}

// WorkersConfig controls the join fan-out.
type WorkersConfig struct {
	// Concurrency bounds the number of nodes joined in parallel. 1 is sequential.
	Concurrency int `yaml:"concurrency"`
}

// ManifestsConfig controls workload application.
type ManifestsConfig struct {
	Namespace     string        `yaml:"namespace"`
	RecreatePause time.Duration `yaml:"recreate_pause"`
	// RecreateTimeout bounds the wait for the old app StatefulSet to be gone.
	RecreateTimeout time.Duration `yaml:"recreate_timeout"`
	FieldManager    string        `yaml:"field_manager"`
}

// MonitoringConfig controls the monitoring stack installed on the master.
type MonitoringConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Namespace       string        `yaml:"namespace"`
	Release         string        `yaml:"release"`
	ChartVersion    string        `yaml:"chart_version,omitempty"`
	GrafanaNodePort int32         `yaml:"grafana_node_port"`
	RolloutTimeout  time.Duration `yaml:"rollout_timeout"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// BackupConfig points at S3-compatible storage for registry backups.
type BackupConfig struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}
