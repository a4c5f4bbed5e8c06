package orchestration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/registry"
)

const k3sKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    certificate-authority-data: ""
    server: https://127.0.0.1:6443
  name: default
contexts:
- context:
    cluster: default
    user: default
  name: default
current-context: default
users:
- name: default
  user:
    token: abc
`

func TestRewriteServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		kubeconfig string
		port       int
		want       string
	}{
		{name: "loopback default port", kubeconfig: k3sKubeconfig, want: "https://192.168.0.147:6443"},
		{name: "custom listen port kept", kubeconfig: strings.Replace(k3sKubeconfig, "127.0.0.1:6443", "127.0.0.1:16443", 1), want: "https://192.168.0.147:16443"},
		{name: "explicit port wins", kubeconfig: k3sKubeconfig, port: 7443, want: "https://192.168.0.147:7443"},
		{name: "localhost", kubeconfig: strings.Replace(k3sKubeconfig, "127.0.0.1", "localhost", 1), want: "https://192.168.0.147:6443"},
		{name: "ipv6 loopback", kubeconfig: strings.Replace(k3sKubeconfig, "127.0.0.1", "[::1]", 1), want: "https://192.168.0.147:6443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := RewriteServer([]byte(tt.kubeconfig), "192.168.0.147", tt.port)
			require.NoError(t, err)

			cfg, err := clientcmd.Load(out)
			require.NoError(t, err)
			require.Contains(t, cfg.Clusters, "default")
			assert.Equal(t, tt.want, cfg.Clusters["default"].Server)
			assert.Equal(t, "abc", cfg.AuthInfos["default"].Token)
		})
	}
}

func TestRewriteServer_Invalid(t *testing.T) {
	t.Parallel()

	_, err := RewriteServer([]byte("clusters: ["), "10.0.0.1", 0)
	assert.ErrorContains(t, err, "failed to parse kubeconfig")

	_, err = RewriteServer([]byte(strings.Replace(k3sKubeconfig, "https://127.0.0.1:6443", "not a url", 1)), "10.0.0.1", 0)
	assert.ErrorContains(t, err, "cluster default has an invalid server")
}

func TestKubeconfigFactory(t *testing.T) {
	t.Parallel()
	master := testNode("nuc2", "192.168.0.147", registry.KindEdge, true)

	t.Run("reads the kubeconfig from the master", func(t *testing.T) {
		t.Parallel()
		host := newFakeHost("nuc2").on(k3sKubeconfigPath, ssh.Result{Stdout: k3sKubeconfig})

		cp, err := KubeconfigFactory{}.ForMaster(context.Background(), master, host)
		require.NoError(t, err)
		assert.Contains(t, string(cp.Kubeconfig()), "https://192.168.0.147:6443")
		assert.True(t, host.ran("sudo cat "+k3sKubeconfigPath))
	})

	t.Run("prefers a configured file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "config")
		require.NoError(t, os.WriteFile(path, []byte(k3sKubeconfig), 0o600))
		host := newFakeHost("nuc2")

		cp, err := KubeconfigFactory{Path: path}.ForMaster(context.Background(), master, host)
		require.NoError(t, err)
		assert.Contains(t, string(cp.Kubeconfig()), "https://127.0.0.1:6443")
		assert.Empty(t, host.commands)
	})

	t.Run("needs a session only without a file", func(t *testing.T) {
		t.Parallel()
		assert.True(t, KubeconfigFactory{}.NeedsSession())
		assert.False(t, KubeconfigFactory{Path: "/etc/edgefleet/kubeconfig"}.NeedsSession())
	})

	t.Run("fails before k3s is installed", func(t *testing.T) {
		t.Parallel()
		host := newFakeHost("nuc2").on(k3sKubeconfigPath, ssh.Result{ExitCode: 1, Stderr: "No such file or directory"})

		_, err := KubeconfigFactory{}.ForMaster(context.Background(), master, host)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No such file or directory")
	})

	t.Run("fails without a session", func(t *testing.T) {
		t.Parallel()
		_, err := KubeconfigFactory{}.ForMaster(context.Background(), master, nil)
		require.Error(t, err)
	})
}
