package wizard

import (
	"context"
	"fmt"

	"github.com/imamik/edgefleet/internal/registry"
)

// NodeResult holds the answers of the node wizard.
type NodeResult struct {
	Name     string
	Address  string
	Username string
	Kind     registry.Kind
	IsMaster bool

	// AuthMode is AuthPassword or AuthKey.
	AuthMode string
	Password string
	KeyPath  string
}

// ConfigResult holds the answers of the configuration wizard.
type ConfigResult struct {
	RegistryPath string
	FilesDir     string
	SSHPort      string
	Concurrency  int
	Monitoring   bool
	Listen       string
}

// RunNodeWizard prompts for one fleet machine.
// The context is used for cancellation support (e.g., Ctrl+C).
func RunNodeWizard(ctx context.Context) (*registry.Node, error) {
	result := &NodeResult{Kind: registry.KindEdge, AuthMode: AuthPassword}

	if err := runNodeIdentityGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("node identity: %w", err)
	}

	if err := runNodeAccessGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}

	node := BuildNode(result)
	if err := node.Validate(); err != nil {
		return nil, err
	}
	return node, nil
}

// RunConfigWizard prompts for the essentials of edgefleet.yaml.
func RunConfigWizard(ctx context.Context) (*ConfigResult, error) {
	result := &ConfigResult{
		RegistryPath: "edgefleet.db",
		FilesDir:     "files",
		SSHPort:      "22",
		Concurrency:  1,
		Monitoring:   true,
		Listen:       ":8080",
	}

	if err := runPathsGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("paths: %w", err)
	}

	if err := runDeployGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}

	return result, nil
}
