package orchestration

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"k8s.io/client-go/tools/clientcmd"

	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/registry"
)

// k3sKubeconfigPath is where the k3s server writes its admin kubeconfig.
const k3sKubeconfigPath = "/etc/rancher/k3s/k3s.yaml"

// SSHConnector connects to registry nodes with an ssh.Executor.
type SSHConnector struct {
	executor *ssh.Executor
}

// NewSSHConnector creates a connector backed by executor.
func NewSSHConnector(executor *ssh.Executor) *SSHConnector {
	return &SSHConnector{executor: executor}
}

// Connect opens a session to node using its registry credential.
func (c *SSHConnector) Connect(ctx context.Context, node registry.Node) (Session, error) {
	sess, err := c.executor.Connect(ctx, node.Address, ssh.Credential{
		Username: node.Username,
		Password: node.Secret,
		KeyPath:  node.KeyPath,
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// KubeconfigFactory builds control-plane clients from a kubeconfig.
//
// When Path is set the file is used as is. Otherwise the k3s admin kubeconfig
// is read from the master over SSH and its loopback server address is
// rewritten to the master's address.
type KubeconfigFactory struct {
	Path    string
	APIPort int
}

// NeedsSession reports whether ForMaster reads the kubeconfig over SSH.
func (f KubeconfigFactory) NeedsSession() bool {
	return f.Path == ""
}

// ForMaster implements ControlPlaneFactory.
func (f KubeconfigFactory) ForMaster(ctx context.Context, master registry.Node, sess Session) (ControlPlane, error) {
	data, err := f.kubeconfig(ctx, master, sess)
	if err != nil {
		return nil, err
	}
	client, err := k8s.NewFromKubeconfig(data)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (f KubeconfigFactory) kubeconfig(ctx context.Context, master registry.Node, sess Session) ([]byte, error) {
	if f.Path != "" {
		// #nosec G304
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read kubeconfig %s: %w", f.Path, err)
		}
		return data, nil
	}

	if sess == nil {
		return nil, fmt.Errorf("no session to master %s for kubeconfig retrieval", master.Name)
	}
	res := sess.Execute(ctx, "sudo cat "+k3sKubeconfigPath)
	if !res.OK() || strings.TrimSpace(res.Stdout) == "" {
		return nil, fmt.Errorf("failed to read kubeconfig from master %s: %s", master.Name, res.Summary())
	}
	return RewriteServer([]byte(res.Stdout), master.Address, f.APIPort)
}

// RewriteServer points every cluster of a kubeconfig at address. A zero
// port keeps the port of each server URL, falling back to 6443.
func RewriteServer(kubeconfig []byte, address string, port int) ([]byte, error) {
	cfg, err := clientcmd.Load(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}

	for name, cluster := range cfg.Clusters {
		u, err := url.Parse(cluster.Server)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("cluster %s has an invalid server %q", name, cluster.Server)
		}
		p := u.Port()
		if port != 0 {
			p = strconv.Itoa(port)
		}
		if p == "" {
			p = strconv.Itoa(defaultAPIPort)
		}
		u.Host = net.JoinHostPort(address, p)
		cluster.Server = u.String()
	}

	out, err := clientcmd.Write(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode kubeconfig: %w", err)
	}
	return out, nil
}
