package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/orchestration"
	"github.com/imamik/edgefleet/internal/ui/tui"
)

var (
	// isInteractive reports whether the terminal can host the TUI.
	isInteractive = tui.Interactive

	// runDeployTUI renders the pipeline in the terminal.
	runDeployTUI = tui.RunDeployTUI
)

// Deploy runs the deploy pipeline against the registered fleet.
//
// Progress is rendered with the TUI on an interactive terminal and as plain
// lines otherwise (or when plain is set).
func Deploy(ctx context.Context, configPath string, plain bool) error {
	return withApp(ctx, configPath, func(ctx context.Context, cfg *config.Config, a *app) error {
		master := "unknown"
		if node, ok, err := a.store.CurrentMaster(ctx); err == nil && ok {
			master = node.Name
		}

		var (
			summary *orchestration.Summary
			err     error
		)
		if !plain && isInteractive(os.Stdout) {
			summary, err = runDeployTUI(ctx, a.progress, master, a.deployer.Run)
		} else {
			handle := a.progress.Subscribe(tui.NewPlainObserver(os.Stdout))
			summary, err = a.deployer.Run(ctx)
			a.progress.Unsubscribe(handle)
		}
		if err != nil {
			return fmt.Errorf("deployment failed: %w", err)
		}

		printDeploySummary(summary, cfg.Monitoring.Enabled)
		return nil
	})
}

func printDeploySummary(s *orchestration.Summary, monitoring bool) {
	fmt.Println()
	fmt.Println(s.Message)
	fmt.Printf("  Master setup:       %s\n", s.Details.MasterSetup)
	fmt.Printf("  Workers in cluster: %d (%d newly joined)\n", s.Details.WorkersJoined, s.Details.NewNodesAdded)
	fmt.Printf("  Manifests applied:  %d\n", s.Details.ManifestsApplied)
	fmt.Printf("  Config resources:   %d\n", s.Details.ConfigResourcesCreated)
	if !monitoring {
		fmt.Println("  Monitoring:         disabled")
	}
}
