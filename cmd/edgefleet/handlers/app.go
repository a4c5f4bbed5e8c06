// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/orchestration"
	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/registry"
	"github.com/imamik/edgefleet/internal/server"
	"github.com/imamik/edgefleet/internal/util/retry"
)

// registryStore is the registry as the CLI uses it: the store plus its
// lifecycle and snapshot support.
type registryStore interface {
	registry.Store
	Snapshot(w io.Writer) (int64, error)
	Close() error
}

// app is the wired object graph shared by the commands that talk to the fleet.
type app struct {
	store    registryStore
	progress *progress.Broadcaster
	gatherer prometheus.Gatherer
	deployer server.Deployer
	nodes    server.NodeManager
}

func (a *app) Close() error {
	return a.store.Close()
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfig loads and validates the configuration file.
	loadConfig = config.Load

	// configExists reports whether the default configuration file is present.
	configExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// openRegistry opens the bbolt node registry.
	openRegistry = func(ctx context.Context, path string) (registryStore, error) {
		return registry.OpenBolt(ctx, path)
	}

	// newApp wires the orchestrator and its collaborators.
	newApp = buildApp
)

// resolveConfig loads the configuration at configPath. An empty path uses
// edgefleet.yaml from the working directory when present, otherwise the
// built-in defaults.
func resolveConfig(configPath string) (*config.Config, error) {
	if configPath == "" && configExists(config.DefaultPath) {
		configPath = config.DefaultPath
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openRegistry(ctx, cfg.Registry.Path)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := orchestration.NewMetrics(reg)
	broadcaster := progress.NewBroadcaster(progress.WithSubscriberGauge(metrics.SubscriberGauge()))

	connector := orchestration.NewSSHConnector(ssh.NewExecutor(sshConfig(cfg.SSH)))
	factory := orchestration.KubeconfigFactory{Path: cfg.Master.Kubeconfig, APIPort: cfg.Master.APIPort}

	deployer := orchestration.New(orchestration.Dependencies{
		Registry:      store,
		Connector:     connector,
		ControlPlanes: factory,
		Charts:        k8s.NewHelmClient(),
		Progress:      broadcaster,
		Metrics:       metrics,
	}, orchestration.OptionsFromConfig(cfg))

	return &app{
		store:    store,
		progress: broadcaster,
		gatherer: reg,
		deployer: deployer,
		nodes:    orchestration.NewNodeManager(store, connector, factory),
	}, nil
}

func sshConfig(c config.SSHConfig) ssh.Config {
	return ssh.Config{
		Port:        c.Port,
		DialTimeout: c.DialTimeout,
		Connect:     retry.Fixed(c.ConnectAttempts, c.ConnectDelay),
		Command:     retry.Fixed(c.CommandAttempts, c.CommandDelay),
	}
}

// withApp loads the configuration, attaches the logger and runs fn against a
// freshly wired app, closing the registry afterwards.
func withApp(ctx context.Context, configPath string, fn func(ctx context.Context, cfg *config.Config, a *app) error) (err error) {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	ctx, err = contextWithLogger(ctx, cfg.Logging)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	return fn(ctx, cfg, a)
}
