package orchestration

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/registry"
	"github.com/imamik/edgefleet/internal/util/async"
	"github.com/imamik/edgefleet/internal/util/labels"
)

const (
	k3sInstallURL   = "https://get.k3s.io"
	agentUninstall  = "/usr/local/bin/k3s-agent-uninstall.sh"
	agentCleanupCmd = "sudo rm -rf /etc/rancher /var/lib/rancher /var/lib/kubelet"
)

// JoinResult is the outcome of joining one node.
type JoinResult struct {
	Node string
	Kind registry.Kind
	Err  error
}

// Joined reports whether the node joined.
func (r JoinResult) Joined() bool {
	return r.Err == nil
}

// WorkerReport summarizes a fan-out.
type WorkerReport struct {
	Results []JoinResult
}

// Joined counts the nodes that joined.
func (r WorkerReport) Joined() int {
	n := 0
	for _, res := range r.Results {
		if res.Joined() {
			n++
		}
	}
	return n
}

// JoinedNames returns the names of the nodes that joined.
func (r WorkerReport) JoinedNames() []string {
	var out []string
	for _, res := range r.Results {
		if res.Joined() {
			out = append(out, res.Node)
		}
	}
	return out
}

// WorkerJoiner provisions worker nodes and joins them to the cluster.
type WorkerJoiner struct {
	connector   Connector
	serverURL   string
	concurrency int
	metrics     *Metrics
}

// NewWorkerJoiner creates a joiner targeting the API server on master.
func NewWorkerJoiner(connector Connector, master registry.Node, apiPort, concurrency int, metrics *Metrics) *WorkerJoiner {
	if apiPort == 0 {
		apiPort = defaultAPIPort
	}
	return &WorkerJoiner{
		connector:   connector,
		serverURL:   "https://" + net.JoinHostPort(master.Address, strconv.Itoa(apiPort)),
		concurrency: concurrency,
		metrics:     metrics,
	}
}

// JoinAll joins nodes with at most concurrency in flight. A node's failure
// never affects the others. done, when set, is called after each node.
func (w *WorkerJoiner) JoinAll(ctx context.Context, nodes []registry.Node, token string, done func(JoinResult)) WorkerReport {
	tasks := make([]async.Task, len(nodes))
	for i, node := range nodes {
		tasks[i] = async.Task{
			Name: node.Name,
			Func: func(ctx context.Context) error {
				err := w.Join(ctx, node, token)
				w.metrics.observeJoin(node.Kind, err)
				if done != nil {
					done(JoinResult{Node: node.Name, Kind: node.Kind, Err: err})
				}
				return err
			},
		}
	}

	results := async.RunBounded(ctx, w.concurrency, tasks)

	report := WorkerReport{Results: make([]JoinResult, len(results))}
	for i, r := range results {
		report.Results[i] = JoinResult{Node: r.Name, Kind: nodes[i].Kind, Err: r.Err}
	}
	return report
}

// Join installs prerequisites on node, removes a stale agent, and joins it.
// Prerequisite failures are logged; the join is still attempted.
func (w *WorkerJoiner) Join(ctx context.Context, node registry.Node, token string) error {
	log := logr.FromContextOrDiscard(ctx).WithName("workers").WithValues("node", node.Name, "kind", node.Kind)

	sess, err := w.connector.Connect(ctx, node)
	if err != nil {
		log.Error(err, "failed to connect")
		return err
	}
	defer func() { _ = sess.Close() }()

	for _, p := range prerequisitesFor(node.Kind) {
		installed, err := ensure(ctx, sess, p)
		switch {
		case err != nil:
			log.Error(err, "prerequisite failed, continuing", "prerequisite", p.name)
		case installed:
			log.Info("installed prerequisite", "prerequisite", p.name)
		}
	}

	if err := removeStaleAgent(ctx, sess); err != nil {
		log.Error(err, "stale agent cleanup failed, continuing")
	}

	log.Info("joining cluster", "role", node.Role())
	res := sess.Execute(ctx, w.joinCommand(node, token))
	if !res.OK() {
		err := fmt.Errorf("failed to join %s: %s", node.Name, res.Summary())
		log.Error(err, "join failed")
		return err
	}
	log.Info("node joined")
	return nil
}

func (w *WorkerJoiner) joinCommand(node registry.Node, token string) string {
	exec := "agent " + labels.NewLabelBuilder().WithRole(node.Role()).WithName(node.Name).AgentFlags()
	return fmt.Sprintf("curl -sfL %s | K3S_TOKEN=%s K3S_URL=%s K3S_NODE_NAME=%s INSTALL_K3S_EXEC=%s sh -",
		k3sInstallURL,
		ssh.Quote(token),
		ssh.Quote(w.serverURL),
		ssh.Quote(node.Name),
		ssh.Quote(exec),
	)
}

// removeStaleAgent uninstalls a k3s agent left over from an earlier join.
func removeStaleAgent(ctx context.Context, sess Session) error {
	present, err := probe(ctx, sess, "test -x "+agentUninstall)
	if err != nil || !present {
		return err
	}
	if res := sess.Execute(ctx, "sudo "+agentUninstall); !res.OK() {
		return fmt.Errorf("agent uninstall failed: %s", res.Summary())
	}
	if res := sess.Execute(ctx, agentCleanupCmd); !res.OK() {
		return fmt.Errorf("agent state cleanup failed: %s", res.Summary())
	}
	return nil
}
