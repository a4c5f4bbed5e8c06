package k8s

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
)

// ChartSpec describes a chart release.
type ChartSpec struct {
	RepoURL   string
	Chart     string
	Version   string
	Release   string
	Namespace string
	Values    map[string]any
	Wait      bool
	Timeout   time.Duration
}

// HelmClient handles Helm operations.
type HelmClient struct {
	settings *cli.EnvSettings
}

// NewHelmClient creates a new HelmClient.
func NewHelmClient() *HelmClient {
	return &HelmClient{
		settings: cli.New(),
	}
}

// InstallOrUpgrade installs the chart, or upgrades the release if it exists.
func (h *HelmClient) InstallOrUpgrade(ctx context.Context, kubeconfig []byte, spec ChartSpec) error {
	log := logr.FromContextOrDiscard(ctx).WithName("helm").WithValues("release", spec.Release)

	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to create rest config: %w", err)
	}

	actionConfig := new(action.Configuration)
	clientGetter := &genericRESTClientGetter{
		config:    restConfig,
		namespace: spec.Namespace,
	}

	debug := func(format string, v ...interface{}) {
		log.V(1).Info(fmt.Sprintf(format, v...))
	}
	if err := actionConfig.Init(clientGetter, spec.Namespace, os.Getenv("HELM_DRIVER"), debug); err != nil {
		return fmt.Errorf("failed to init action config: %w", err)
	}

	cp := &action.ChartPathOptions{}
	cp.RepoURL = spec.RepoURL
	cp.Version = spec.Version

	chartPath, err := cp.LocateChart(spec.Chart, h.settings)
	if err != nil {
		return fmt.Errorf("failed to locate chart: %w", err)
	}

	chart, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("failed to load chart: %w", err)
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(spec.Release); err == nil {
		log.Info("Upgrading release", "chart", spec.Chart)
		upgrade := action.NewUpgrade(actionConfig)
		upgrade.Namespace = spec.Namespace
		upgrade.Wait = spec.Wait
		upgrade.Timeout = timeout
		if _, err := upgrade.RunWithContext(ctx, spec.Release, chart, spec.Values); err != nil {
			return fmt.Errorf("helm upgrade failed: %w", err)
		}
		return nil
	}

	log.Info("Installing release", "chart", spec.Chart)
	install := action.NewInstall(actionConfig)
	install.Namespace = spec.Namespace
	install.ReleaseName = spec.Release
	install.CreateNamespace = true
	install.Wait = spec.Wait
	install.Timeout = timeout
	if _, err := install.RunWithContext(ctx, chart, spec.Values); err != nil {
		return fmt.Errorf("helm install failed: %w", err)
	}
	return nil
}

// genericRESTClientGetter implements basic RESTClientGetter for Helm.
type genericRESTClientGetter struct {
	config    *rest.Config
	namespace string
}

func (g *genericRESTClientGetter) ToRESTConfig() (*rest.Config, error) {
	return g.config, nil
}

func (g *genericRESTClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(g.config)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(discoveryClient), nil
}

func (g *genericRESTClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	discoveryClient, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(discoveryClient), nil
}

func (g *genericRESTClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	overrides := &clientcmd.ConfigOverrides{}
	overrides.Context.Namespace = g.namespace
	return clientcmd.NewDefaultClientConfig(*clientcmdapi.NewConfig(), overrides)
}
