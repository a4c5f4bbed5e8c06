package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/edgefleet/cmd/edgefleet/handlers"
	"github.com/imamik/edgefleet/internal/config"
)

// Init returns the command that writes a configuration file.
func Init() *cobra.Command {
	var (
		outputPath  string
		useDefaults bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long: `Create an edgefleet configuration file.

An interactive wizard asks for the registry location, the deployment
files directory and a few deploy settings. Everything else is written
with its default so the file documents every option.

Examples:
  # Interactive setup
  edgefleet init

  # Write the defaults without prompting
  edgefleet init --defaults -o lab.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath, useDefaults)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultPath, "Output file path")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "Write the defaults without prompting")

	return cmd
}
