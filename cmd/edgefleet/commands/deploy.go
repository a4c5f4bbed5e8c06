package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/edgefleet/cmd/edgefleet/handlers"
)

// Deploy returns the command that converges the cluster to the registry.
//
// Optional flags:
//
//	--config, -c: Path to configuration file (default: edgefleet.yaml)
//	--plain: Print progress lines instead of the interactive view
func Deploy() *cobra.Command {
	var (
		configPath string
		plain      bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy k3s and workloads to the fleet",
		Long: `Deploy k3s to every registered node and apply the workloads.

The master is installed first (skipped when it is already running and part
of the cluster), then every missing worker joins, then the manifests are
applied. Re-running is safe: converged nodes are left alone.

Examples:
  # Deploy using edgefleet.yaml in the current directory
  edgefleet deploy

  # Deploy from CI without the interactive view
  edgefleet deploy --plain -c lab.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), configPath, plain)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of the interactive view")

	return cmd
}
