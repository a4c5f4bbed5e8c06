package wizard

import (
	"strconv"
	"strings"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/registry"
)

// BuildNode creates a registry entry from the node wizard result.
// Only the credential matching the chosen auth mode is kept.
func BuildNode(result *NodeResult) *registry.Node {
	node := &registry.Node{
		Name:     strings.TrimSpace(result.Name),
		Address:  strings.TrimSpace(result.Address),
		Username: strings.TrimSpace(result.Username),
		Kind:     result.Kind,
		IsMaster: result.IsMaster,
	}

	if result.AuthMode == AuthKey {
		node.KeyPath = strings.TrimSpace(result.KeyPath)
	} else {
		node.Secret = result.Password
	}
	return node
}

// BuildConfig overlays the config wizard result on the defaults.
func BuildConfig(result *ConfigResult) *config.Config {
	cfg := config.Default()

	cfg.Registry.Path = result.RegistryPath
	cfg.Files.Dir = result.FilesDir
	if p, err := strconv.Atoi(strings.TrimSpace(result.SSHPort)); err == nil {
		cfg.SSH.Port = p
	}
	if result.Concurrency > 0 {
		cfg.Workers.Concurrency = result.Concurrency
	}
	cfg.Monitoring.Enabled = result.Monitoring
	cfg.Server.Listen = result.Listen

	return cfg
}
