package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/config/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	fileExists       = wizard.FileExists
	confirmOverwrite = wizard.ConfirmOverwrite
	runConfigWizard  = wizard.RunConfigWizard
	writeConfig      = wizard.WriteConfig
)

// Init writes a configuration file, prompting for the essentials unless
// useDefaults is set.
func Init(ctx context.Context, outputPath string, useDefaults bool) error {
	if fileExists(outputPath) {
		ok, err := confirmOverwrite(outputPath)
		if err != nil {
			return fmt.Errorf("failed to confirm overwrite: %w", err)
		}
		if !ok {
			fmt.Println("Aborted; existing configuration kept.")
			return nil
		}
	}

	var cfg *config.Config
	if useDefaults {
		cfg = config.Default()
	} else {
		printWelcome()
		result, err := runConfigWizard(ctx)
		if err != nil {
			return fmt.Errorf("wizard canceled: %w", err)
		}
		cfg = wizard.BuildConfig(result)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := writeConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

func printWelcome() {
	fmt.Println()
	fmt.Println("edgefleet - k3s for edge and IoT fleets")
	fmt.Println("=======================================")
	fmt.Println()
	fmt.Println("This wizard creates a configuration with sensible defaults.")
	fmt.Println()
}

func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File:        %s\n", outputPath)
	fmt.Printf("  Registry:    %s\n", cfg.Registry.Path)
	fmt.Printf("  Files:       %s\n", cfg.Files.Dir)
	fmt.Printf("  Concurrency: %d\n", cfg.Workers.Concurrency)
	fmt.Printf("  Monitoring:  %t\n", cfg.Monitoring.Enabled)
	fmt.Printf("  Listen:      %s\n", cfg.Server.Listen)
	fmt.Println()
	fmt.Println("Next steps")
	fmt.Println("----------")
	fmt.Printf("  1. Register the master:  edgefleet node add --interactive -c %s\n", outputPath)
	fmt.Printf("  2. Register workers:     edgefleet node add --interactive -c %s\n", outputPath)
	fmt.Printf("  3. Deploy:               edgefleet deploy -c %s\n", outputPath)
	fmt.Println()
}
