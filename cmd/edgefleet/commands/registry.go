package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/edgefleet/cmd/edgefleet/handlers"
)

// Registry returns the command group for registry backups.
//
// Backups go to the S3-compatible bucket configured under backup.
func Registry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Back up and restore the node registry",
	}

	cmd.AddCommand(registryBackup())
	cmd.AddCommand(registryList())
	cmd.AddCommand(registryRestore())
	cmd.AddCommand(registryPrune())

	return cmd
}

func registryBackup() *cobra.Command {
	var (
		configPath string
		keep       int
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload a registry snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.RegistryBackup(cmd.Context(), configPath, keep)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&keep, "keep", 0, "Keep only the newest N snapshots after uploading (0 keeps all)")

	return cmd
}

func registryList() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registry snapshots",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.RegistryBackups(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}

func registryRestore() *cobra.Command {
	var (
		configPath string
		output     string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "restore [key]",
		Short: "Restore a registry snapshot",
		Long: `Download a registry snapshot and install it.

Without a key the newest snapshot is restored. The snapshot replaces the
configured registry unless --output names another file. Stop 'edgefleet
serve' first: the registry is locked while it runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			}
			return handlers.RegistryRestore(cmd.Context(), configPath, key, output, force)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the registry here (default: registry.path from the config)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing registry file")

	return cmd
}

func registryPrune() *cobra.Command {
	var (
		configPath string
		keep       int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.RegistryPrune(cmd.Context(), configPath, keep)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&keep, "keep", 7, "Number of snapshots to keep")

	return cmd
}
