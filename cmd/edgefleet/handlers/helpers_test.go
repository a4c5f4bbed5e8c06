package handlers

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/registry"
	"github.com/imamik/edgefleet/internal/server"
	edgetest "github.com/imamik/edgefleet/internal/testing"
)

// saveAndRestoreFactories restores every injectable factory after the test.
func saveAndRestoreFactories(t *testing.T) {
	t.Helper()

	origLoadConfig := loadConfig
	origConfigExists := configExists
	origOpenRegistry := openRegistry
	origNewApp := newApp
	origIsInteractive := isInteractive
	origRunDeployTUI := runDeployTUI
	origRunNodeWizard := runNodeWizard
	origFileExists := fileExists
	origConfirmOverwrite := confirmOverwrite
	origRunConfigWizard := runConfigWizard
	origWriteConfig := writeConfig
	origNewBackups := newBackups
	origNotifyContext := notifyContext

	t.Cleanup(func() {
		loadConfig = origLoadConfig
		configExists = origConfigExists
		openRegistry = origOpenRegistry
		newApp = origNewApp
		isInteractive = origIsInteractive
		runDeployTUI = origRunDeployTUI
		runNodeWizard = origRunNodeWizard
		fileExists = origFileExists
		confirmOverwrite = origConfirmOverwrite
		runConfigWizard = origRunConfigWizard
		writeConfig = origWriteConfig
		newBackups = origNewBackups
		notifyContext = origNotifyContext
	})
}

func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&buf, r)
		close(done)
	}()

	f()

	w.Close()
	os.Stdout = old
	<-done
	return buf.String()
}

// useConfig makes every handler load cfg.
func useConfig(cfg *config.Config) {
	loadConfig = func(string) (*config.Config, error) {
		return cfg, nil
	}
}

// testConfig points the registry at a fresh temporary database.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return edgetest.NewConfigBuilder().
		WithRegistryPath(filepath.Join(t.TempDir(), "edgefleet.db")).
		WithFilesDir(edgetest.WriteBundle(t)).
		Build()
}

// seedRegistry writes nodes into the registry at path.
func seedRegistry(t *testing.T, path string, nodes ...registry.Node) {
	t.Helper()
	store, err := registry.OpenBolt(context.Background(), path)
	require.NoError(t, err)
	for _, n := range nodes {
		require.NoError(t, store.Add(context.Background(), n))
	}
	require.NoError(t, store.Close())
}

// useApp replaces the pipeline with mocks over a real registry. The returned
// broadcaster is the one handed to the handler.
func useApp(deployer server.Deployer, nodes server.NodeManager) *progress.Broadcaster {
	b := progress.NewBroadcaster()
	newApp = func(ctx context.Context, cfg *config.Config) (*app, error) {
		store, err := registry.OpenBolt(ctx, cfg.Registry.Path)
		if err != nil {
			return nil, err
		}
		return &app{
			store:    store,
			progress: b,
			gatherer: prometheus.NewRegistry(),
			deployer: deployer,
			nodes:    nodes,
		}, nil
	}
	return b
}
