package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required")
	}
	if c.Files.Dir == "" {
		return fmt.Errorf("files.dir is required")
	}

	if err := c.validateMaster(); err != nil {
		return fmt.Errorf("master validation failed: %w", err)
	}
	if err := c.validateSSH(); err != nil {
		return fmt.Errorf("ssh validation failed: %w", err)
	}

	if c.Workers.Concurrency < 1 {
		return fmt.Errorf("workers.concurrency must be at least 1, got %d", c.Workers.Concurrency)
	}
	if c.Manifests.Namespace == "" {
		return fmt.Errorf("manifests.namespace is required")
	}
	if c.Manifests.RecreatePause < 0 {
		return fmt.Errorf("manifests.recreate_pause must not be negative")
	}
	if c.Manifests.RecreateTimeout < 0 {
		return fmt.Errorf("manifests.recreate_timeout must not be negative")
	}

	if c.Monitoring.Enabled {
		if c.Monitoring.Namespace == "" || c.Monitoring.Release == "" {
			return fmt.Errorf("monitoring.namespace and monitoring.release are required when monitoring is enabled")
		}
		if p := c.Monitoring.GrafanaNodePort; p < 30000 || p > 32767 {
			return fmt.Errorf("monitoring.grafana_node_port %d outside NodePort range 30000-32767", p)
		}
	}

	if c.Backup.Bucket != "" && c.Backup.Region == "" && c.Backup.Endpoint == "" {
		return fmt.Errorf("backup.region or backup.endpoint is required when backup.bucket is set")
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMaster() error {
	if c.Master.InstallScript == "" {
		return fmt.Errorf("install_script is required")
	}
	if filepath.Base(c.Master.InstallScript) != c.Master.InstallScript {
		return fmt.Errorf("install_script must be a file name inside files.dir, got %q", c.Master.InstallScript)
	}
	if c.Master.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if c.Master.APIPort < 1 || c.Master.APIPort > 65535 {
		return fmt.Errorf("invalid api_port %d", c.Master.APIPort)
	}
	return nil
}

func (c *Config) validateSSH() error {
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.SSH.Port)
	}
	if c.SSH.ConnectAttempts < 1 {
		return fmt.Errorf("connect_attempts must be at least 1, got %d", c.SSH.ConnectAttempts)
	}
	if c.SSH.CommandAttempts < 1 {
		return fmt.Errorf("command_attempts must be at least 1, got %d", c.SSH.CommandAttempts)
	}
	if c.SSH.ConnectDelay < 0 || c.SSH.CommandDelay < 0 || c.SSH.DialTimeout < 0 {
		return fmt.Errorf("delays and timeouts must not be negative")
	}
	return nil
}
