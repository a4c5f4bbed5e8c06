// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/edgefleet/cmd/edgefleet/handlers"
)

// Root returns the root command for the edgefleet CLI.
//
// Logging flags are persistent. When neither is given, commands log with the
// settings from the configuration file.
func Root() *cobra.Command {
	var (
		logLevel string
		debug    bool
	)

	cmd := &cobra.Command{
		Use:           "edgefleet",
		Short:         "Bootstrap k3s across edge and IoT fleets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if !flags.Changed("log-level") && !flags.Changed("debug") {
				return nil
			}
			ctx, err := handlers.WithLogger(cmd.Context(), logLevel, debug)
			if err != nil {
				return err
			}
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Development logging with stack traces")

	// Fleet commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Node())
	cmd.AddCommand(Deploy())
	cmd.AddCommand(Serve())
	cmd.AddCommand(Registry())

	// Utility commands
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// addConfigFlag binds the --config flag shared by commands that read the
// configuration file.
func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "Path to configuration file (default: edgefleet.yaml)")
}
