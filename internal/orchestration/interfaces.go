package orchestration

import (
	"context"
	"os"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/registry"
)

// Session runs commands on one connected host.
type Session interface {
	Execute(ctx context.Context, command string) ssh.Result
	Upload(ctx context.Context, remotePath string, data []byte, mode os.FileMode) error
	Close() error
}

// Connector opens sessions to registry nodes.
type Connector interface {
	Connect(ctx context.Context, node registry.Node) (Session, error)
}

// ControlPlane is the subset of the Kubernetes API the pipeline needs.
// *k8s.Client implements it.
type ControlPlane interface {
	Kubeconfig() []byte

	ListNodes(ctx context.Context) ([]k8s.LiveNode, error)
	Healthy(ctx context.Context) bool
	Drain(ctx context.Context, name string, timeout time.Duration) error
	DeleteNode(ctx context.Context, name string) error
	CountRunningPods(ctx context.Context, namespace string) (int, error)

	ApplyManifest(ctx context.Context, manifest []byte, fieldManager, defaultNamespace string) ([]k8s.ObjectRef, error)
	DeleteManifest(ctx context.Context, manifest []byte, defaultNamespace string, opts k8s.DeleteOptions) ([]k8s.ObjectRef, error)
	CreateOrReplaceConfigMap(ctx context.Context, cm *corev1.ConfigMap) error

	SetContainerEnv(ctx context.Context, namespace, deployment, container string, env []corev1.EnvVar) error
	SetNodePort(ctx context.Context, namespace, service string, port, nodePort int32) error
	RolloutRestart(ctx context.Context, namespace, deployment string) error
	WaitForDeployment(ctx context.Context, namespace, name string, timeout time.Duration) error
	WaitForPodsReady(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error
}

// ControlPlaneFactory acquires a control-plane handle for the cluster served
// by master. sess is an open session to the master.
type ControlPlaneFactory interface {
	ForMaster(ctx context.Context, master registry.Node, sess Session) (ControlPlane, error)
}

// ChartInstaller installs Helm charts. *k8s.HelmClient implements it.
type ChartInstaller interface {
	InstallOrUpgrade(ctx context.Context, kubeconfig []byte, spec k8s.ChartSpec) error
}

var (
	_ ControlPlane   = (*k8s.Client)(nil)
	_ ChartInstaller = (*k8s.HelmClient)(nil)
	_ Session        = (*ssh.Session)(nil)
)
