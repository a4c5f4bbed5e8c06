package wizard

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/imamik/edgefleet/internal/registry"
)

// nodeNameRegex follows Kubernetes node name rules for a single DNS label.
var nodeNameRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// runNodeIdentityGroup prompts for name, address, kind and master flag.
func runNodeIdentityGroup(ctx context.Context, result *NodeResult) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Node Name").
				Description("Becomes the Kubernetes node name").
				Placeholder("edge-01").
				Value(&result.Name).
				Validate(validateNodeName),
			huh.NewInput().
				Title("IP Address").
				Placeholder("192.168.1.20").
				Value(&result.Address).
				Validate(validateAddress),
			huh.NewSelect[registry.Kind]().
				Title("Kind").
				Options(KindsToOptions()...).
				Value(&result.Kind),
			huh.NewConfirm().
				Title("Control plane (master)?").
				Description("Replaces the current master, if any").
				Value(&result.IsMaster),
		).Title("Node"),
	).RunWithContext(ctx)
}

// runNodeAccessGroup prompts for SSH credentials.
func runNodeAccessGroup(ctx context.Context, result *NodeResult) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH Username").
				Placeholder("ubuntu").
				Value(&result.Username).
				Validate(validateRequired(errUsernameRequired)),
			huh.NewSelect[string]().
				Title("Authentication").
				Options(AuthOptions...).
				Value(&result.AuthMode),
		).Title("SSH Access"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	if result.AuthMode == AuthKey {
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Private Key Path").
					Placeholder("~/.ssh/id_ed25519").
					Value(&result.KeyPath).
					Validate(validateRequired(errAuthRequired)),
			),
		).RunWithContext(ctx)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&result.Password).
				Validate(validateRequired(errAuthRequired)),
		),
	).RunWithContext(ctx)
}

// runPathsGroup prompts for registry and bundle locations.
func runPathsGroup(ctx context.Context, result *ConfigResult) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Registry Database").
				Description("bbolt file holding the node registry").
				Value(&result.RegistryPath).
				Validate(validateRequired(errPathRequired)),
			huh.NewInput().
				Title("Files Directory").
				Description("Install script, manifests, detect.py and model files").
				Value(&result.FilesDir).
				Validate(validateRequired(errPathRequired)),
		).Title("Paths"),
	).RunWithContext(ctx)
}

// runDeployGroup prompts for deploy behavior.
func runDeployGroup(ctx context.Context, result *ConfigResult) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH Port").
				Value(&result.SSHPort).
				Validate(validatePort),
			huh.NewSelect[int]().
				Title("Parallel Joins").
				Description("Worker nodes joined at the same time").
				Options(
					huh.NewOption("1 (sequential)", 1),
					huh.NewOption("2", 2),
					huh.NewOption("4", 4),
					huh.NewOption("8", 8),
				).
				Value(&result.Concurrency),
			huh.NewConfirm().
				Title("Install monitoring stack?").
				Description("kube-prometheus-stack with Grafana on a fixed NodePort").
				Value(&result.Monitoring),
			huh.NewInput().
				Title("HTTP Listen Address").
				Value(&result.Listen).
				Validate(validateRequired(errPathRequired)),
		).Title("Deploy"),
	).RunWithContext(ctx)
}

func validateNodeName(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errNodeNameRequired
	}
	if !nodeNameRegex.MatchString(s) {
		return errNodeNameInvalid
	}
	return nil
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errAddressRequired
	}
	return registry.ValidateAddress(s)
}

func validatePort(s string) error {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return errPortInvalid
	}
	return nil
}

func validateRequired(errEmpty error) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errEmpty
		}
		return nil
	}
}
