package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "edgefleet.yaml"

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{Path: "edgefleet.db"},
		Files:    FilesConfig{Dir: "files"},
		Master: MasterConfig{
			InstallScript: "install-k3s.sh",
			SettleDelay:   30 * time.Second,
			APIPort:       6443,
		},
		SSH: SSHConfig{
			Port:            22,
			DialTimeout:     30 * time.Second,
			ConnectAttempts: 3,
			ConnectDelay:    10 * time.Second,
			CommandAttempts: 2,
			CommandDelay:    5 * time.Second,
		},
		Workers: WorkersConfig{Concurrency: 1},
		Manifests: ManifestsConfig{
			Namespace:     "default",
			RecreatePause:   2 * time.Second,
			RecreateTimeout: 2 * time.Minute,
			FieldManager:    "edgefleet",
		},
		Monitoring: MonitoringConfig{
			Enabled:         true,
			Namespace:       "monitoring",
			Release:         "prometheus-operator",
			GrafanaNodePort: 32000,
			RolloutTimeout:  5 * time.Minute,
		},
		Server:  ServerConfig{Listen: ":8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path, or the defaults when path is empty, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		ApplyEnv(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads and parses the configuration from a YAML file.
// Fields absent from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Write marshals cfg to path with owner-only permissions.
func Write(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
