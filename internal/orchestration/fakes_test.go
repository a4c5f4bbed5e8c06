package orchestration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/registry"
)

// reply answers commands containing match.
type reply struct {
	match string
	fn    func(cmd string) ssh.Result
}

// fakeHost is a scripted remote machine. Unmatched commands succeed with no
// output, so checks report "missing".
type fakeHost struct {
	mu       sync.Mutex
	name     string
	replies  []reply
	commands []string
	uploads  map[string][]byte
	closed   int
}

func newFakeHost(name string) *fakeHost {
	return &fakeHost{name: name, uploads: map[string][]byte{}}
}

func (h *fakeHost) on(match string, res ssh.Result) *fakeHost {
	return h.onFunc(match, func(string) ssh.Result { return res })
}

func (h *fakeHost) onFunc(match string, fn func(cmd string) ssh.Result) *fakeHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Later registrations take precedence.
	h.replies = append([]reply{{match: match, fn: fn}}, h.replies...)
	return h
}

// present makes checks containing match pass.
func (h *fakeHost) present(match string) *fakeHost {
	return h.on(match, ssh.Result{Stdout: "present\n"})
}

func (h *fakeHost) Execute(_ context.Context, cmd string) ssh.Result {
	h.mu.Lock()
	h.commands = append(h.commands, cmd)
	replies := h.replies
	h.mu.Unlock()

	for _, r := range replies {
		if strings.Contains(cmd, r.match) {
			return r.fn(cmd)
		}
	}
	if strings.HasPrefix(cmd, "if ") {
		return ssh.Result{Stdout: "missing\n"}
	}
	return ssh.Result{}
}

func (h *fakeHost) Upload(_ context.Context, remotePath string, data []byte, _ os.FileMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads[remotePath] = data
	return nil
}

func (h *fakeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHost) ran(substr string) bool {
	return h.count(substr) > 0
}

func (h *fakeHost) count(substr string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.commands {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

// fakeConnector hands out fakeHosts by node name.
type fakeConnector struct {
	mu    sync.Mutex
	hosts map[string]*fakeHost
	fail  map[string]error
	dials []string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{hosts: map[string]*fakeHost{}, fail: map[string]error{}}
}

func (c *fakeConnector) host(name string) *fakeHost {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hosts[name]
	if !ok {
		h = newFakeHost(name)
		c.hosts[name] = h
	}
	return h
}

func (c *fakeConnector) Connect(_ context.Context, node registry.Node) (Session, error) {
	c.mu.Lock()
	c.dials = append(c.dials, node.Name)
	err := c.fail[node.Name]
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.host(node.Name), nil
}

// fakeCluster is an in-memory control plane.
type fakeCluster struct {
	mu sync.Mutex

	nodes      map[string]bool
	listErr    error
	applyErr   map[string]error
	applied    []string
	deleted    []string
	deleteOpts []k8s.DeleteOptions
	deleteErr  error
	configMaps map[string]*corev1.ConfigMap
	drained    []string
	removed    []string
	calls      []string

	runningPods int
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		nodes:      map[string]bool{},
		applyErr:   map[string]error{},
		configMaps: map[string]*corev1.ConfigMap{},
	}
}

func (f *fakeCluster) addNode(name string, ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[name] = ready
}

func (f *fakeCluster) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCluster) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeCluster) Kubeconfig() []byte { return []byte("apiVersion: v1\nkind: Config\n") }

func (f *fakeCluster) ListNodes(context.Context) ([]k8s.LiveNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []k8s.LiveNode
	for name, ready := range f.nodes {
		out = append(out, k8s.LiveNode{Name: name, Ready: ready, Labels: map[string]string{"name": name}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCluster) Healthy(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listErr == nil
}

func (f *fakeCluster) Drain(_ context.Context, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drained = append(f.drained, name)
	return nil
}

func (f *fakeCluster) DeleteNode(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	delete(f.nodes, name)
	return nil
}

func (f *fakeCluster) CountRunningPods(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runningPods, nil
}

func (f *fakeCluster) ApplyManifest(_ context.Context, manifest []byte, _, _ string) ([]k8s.ObjectRef, error) {
	name := strings.TrimSpace(string(manifest))
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyErr[name]; err != nil {
		return nil, err
	}
	f.applied = append(f.applied, name)
	return []k8s.ObjectRef{{Kind: "ConfigMap", Name: name}}, nil
}

func (f *fakeCluster) DeleteManifest(_ context.Context, manifest []byte, _ string, opts k8s.DeleteOptions) ([]k8s.ObjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, strings.TrimSpace(string(manifest)))
	f.deleteOpts = append(f.deleteOpts, opts)
	return nil, nil
}

func (f *fakeCluster) CreateOrReplaceConfigMap(_ context.Context, cm *corev1.ConfigMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configMaps[cm.Namespace+"/"+cm.Name] = cm
	return nil
}

func (f *fakeCluster) SetContainerEnv(_ context.Context, _, deployment, _ string, _ []corev1.EnvVar) error {
	f.record("env " + deployment)
	return nil
}

func (f *fakeCluster) SetNodePort(_ context.Context, _, service string, _, _ int32) error {
	f.record("nodeport " + service)
	return nil
}

func (f *fakeCluster) RolloutRestart(_ context.Context, _, deployment string) error {
	f.record("restart " + deployment)
	return nil
}

func (f *fakeCluster) WaitForDeployment(_ context.Context, _, name string, _ time.Duration) error {
	f.record("rollout " + name)
	return nil
}

func (f *fakeCluster) WaitForPodsReady(_ context.Context, _, selector string, _ time.Duration) error {
	f.record("pods " + selector)
	return nil
}

// fakeFactory returns the cluster once it is reachable.
type fakeFactory struct {
	mu        sync.Mutex
	cluster   *fakeCluster
	reachable bool
	calls     int
}

func (f *fakeFactory) setReachable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable = v
}

func (f *fakeFactory) ForMaster(context.Context, registry.Node, Session) (ControlPlane, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.reachable {
		return nil, errors.New("kubeconfig not found")
	}
	return f.cluster, nil
}

// fakeCharts records chart installs.
type fakeCharts struct {
	mu    sync.Mutex
	specs []k8s.ChartSpec
	err   error
}

func (f *fakeCharts) InstallOrUpgrade(_ context.Context, _ []byte, spec k8s.ChartSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	return f.err
}

// memStore is an in-memory registry.Store.
type memStore struct {
	mu    sync.Mutex
	nodes map[string]registry.Node
}

func newMemStore(nodes ...registry.Node) *memStore {
	s := &memStore{nodes: map[string]registry.Node{}}
	for _, n := range nodes {
		s.nodes[n.Name] = n
	}
	return s
}

func (s *memStore) Add(_ context.Context, node registry.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node.IsMaster {
		for name, n := range s.nodes {
			n.IsMaster = false
			s.nodes[name] = n
		}
	}
	s.nodes[node.Name] = node
	return nil
}

func (s *memStore) Get(_ context.Context, name string) (registry.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[name]
	if !ok {
		return registry.Node{}, registry.ErrNotFound
	}
	return n, nil
}

func (s *memStore) List(context.Context) ([]registry.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]registry.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[name]; ok && n.IsMaster {
		return registry.ErrMasterProtected
	}
	if _, ok := s.nodes[name]; !ok {
		return registry.ErrNotFound
	}
	delete(s.nodes, name)
	return nil
}

func (s *memStore) CurrentMaster(context.Context) (registry.Node, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.IsMaster {
			return n, true, nil
		}
	}
	return registry.Node{}, false, nil
}

func testNode(name, address string, kind registry.Kind, master bool) registry.Node {
	return registry.Node{
		Name:     name,
		Address:  address,
		Username: "pi",
		Secret:   "raspberry",
		Kind:     kind,
		IsMaster: master,
	}
}

// writeBundle creates a files directory whose files contain their own name,
// so fakeCluster can tell manifests apart.
func writeBundle(t tb, skip ...string) Bundle {
	t.Helper()
	b := Bundle{Dir: t.TempDir(), InstallScript: defaultInstallScript}
	omit := map[string]bool{}
	for _, s := range skip {
		omit[s] = true
	}
	for _, name := range b.Required() {
		if omit[name] {
			continue
		}
		if err := os.WriteFile(filepath.Join(b.Dir, name), []byte(name), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return b
}
