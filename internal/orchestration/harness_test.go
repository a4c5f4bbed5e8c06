package orchestration

import (
	"sync"

	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/registry"
)

const testToken = "K10abc::server:secret"

// tb is the part of testing.TB that GinkgoT also provides.
type tb interface {
	Helper()
	TempDir() string
	Fatalf(format string, args ...any)
}

// eventLog records published progress events.
type eventLog struct {
	mu     sync.Mutex
	events []progress.Event
}

func (l *eventLog) Deliver(e progress.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) all() []progress.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]progress.Event(nil), l.events...)
}

func (l *eventLog) last() progress.Event {
	all := l.all()
	if len(all) == 0 {
		return progress.Event{}
	}
	return all[len(all)-1]
}

func (l *eventLog) messages() []string {
	var out []string
	for _, e := range l.all() {
		out = append(out, e.Message)
	}
	return out
}

// harness wires an Orchestrator to fakes. Installing k3s on the master makes
// the cluster reachable; a join command adds the worker to the cluster.
type harness struct {
	store     *memStore
	connector *fakeConnector
	cluster   *fakeCluster
	factory   *fakeFactory
	charts    *fakeCharts
	events    *eventLog
	bundle    Bundle
	opts      Options
	master    registry.Node
	metrics   *Metrics
}

func newHarness(t tb, master registry.Node, workers ...registry.Node) *harness {
	t.Helper()
	cluster := newFakeCluster()
	h := &harness{
		store:     newMemStore(append([]registry.Node{master}, workers...)...),
		connector: newFakeConnector(),
		cluster:   cluster,
		factory:   &fakeFactory{cluster: cluster},
		charts:    &fakeCharts{},
		events:    &eventLog{},
		bundle:    writeBundle(t),
		master:    master,
		metrics:   NewMetrics(nil),
	}
	h.opts = Options{
		FilesDir:      h.bundle.Dir,
		InstallScript: h.bundle.InstallScript,
		Monitoring:    MonitoringOptions{Enabled: true},
	}

	h.connector.host(master.Name).
		onFunc(defaultInstallScript, func(string) ssh.Result {
			h.factory.setReachable(true)
			cluster.addNode(master.Name, true)
			return ssh.Result{}
		}).
		on("server/node-token", ssh.Result{Stdout: testToken + "\n"})

	for _, w := range workers {
		name := w.Name
		h.connector.host(name).onFunc("K3S_TOKEN", func(string) ssh.Result {
			cluster.addNode(name, true)
			return ssh.Result{}
		})
	}
	return h
}

// converged marks the master as already running k3s with the given workers
// already in the cluster.
func (h *harness) converged(liveWorkers ...string) *harness {
	h.factory.setReachable(true)
	h.cluster.addNode(h.master.Name, true)
	for _, w := range liveWorkers {
		h.cluster.addNode(w, true)
	}
	h.connector.host(h.master.Name).present("systemctl is-active")
	return h
}

func (h *harness) orchestrator() *Orchestrator {
	b := progress.NewBroadcaster()
	b.Subscribe(h.events)
	return New(Dependencies{
		Registry:      h.store,
		Connector:     h.connector,
		ControlPlanes: h.factory,
		Charts:        h.charts,
		Progress:      b,
		Metrics:       h.metrics,
	}, h.opts)
}
