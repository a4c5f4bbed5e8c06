package orchestration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/registry"
)

var (
	// ErrRunInProgress is returned when a run is started while another is active.
	ErrRunInProgress = errors.New("a deployment run is already in progress")
	// ErrNoMaster is returned when the registry has no master node.
	ErrNoMaster = errors.New("no master node defined")
)

// Master setup outcomes reported in Details.
const (
	MasterSetupCompleted = "completed"
	MasterSetupSkipped   = "skipped"
)

// StageError is a fatal failure of one pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Details are the counts reported by a successful run.
type Details struct {
	MasterSetup            string `json:"masterSetup"`
	WorkersJoined          int    `json:"workersJoined"`
	NewNodesAdded          int    `json:"newNodesAdded"`
	ManifestsApplied       int    `json:"manifestsApplied"`
	ConfigResourcesCreated int    `json:"configResourcesCreated"`
}

// Summary is the result of a run.
type Summary struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Details Details `json:"details"`
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	Registry      registry.Store
	Connector     Connector
	ControlPlanes ControlPlaneFactory
	Charts        ChartInstaller
	Progress      progress.Publisher
	Metrics       *Metrics
}

// Orchestrator runs the deploy pipeline. Only one run is active at a time.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	bundle Bundle

	mu sync.Mutex
}

// New creates an orchestrator.
func New(deps Dependencies, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		bundle: Bundle{Dir: opts.FilesDir, InstallScript: opts.InstallScript},
	}
}

// run carries the state handed from one stage to the next.
type run struct {
	rep *progress.Reporter

	master  registry.Node
	session Session
	nodes   []registry.Node
	live    sets.Set[string]
	cp      ControlPlane
	plan    Plan
	outcome MasterOutcome
	token   string
	workers WorkerReport
	applied ManifestReport
	verdict string
}

// stage is one step of the pipeline.
type stage struct {
	name string
	fn   func(ctx context.Context, r *run) error
}

// Running reports whether a run is active.
func (o *Orchestrator) Running() bool {
	if o.mu.TryLock() {
		o.mu.Unlock()
		return false
	}
	return true
}

// Run executes the pipeline to completion or to its first fatal stage. It
// returns ErrRunInProgress when another run is active. The run ignores
// cancellation of ctx; only its values are kept.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if !o.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	log := logr.FromContextOrDiscard(ctx).WithName("deploy")
	ctx = logr.NewContext(ctx, log)

	r := &run{rep: progress.NewReporter(o.deps.Progress)}
	defer func() {
		if r.session != nil {
			_ = r.session.Close()
		}
	}()

	start := time.Now()
	err := o.runStages(ctx, log, r, o.stages())
	o.deps.Metrics.observeRun(err, time.Since(start))
	if err != nil {
		r.rep.Fail(fmt.Sprintf("Deployment failed: %v", err))
		return nil, err
	}

	summary := o.summarize(r)
	r.rep.Complete(r.verdict, summary.Details)
	log.Info("deployment completed", "duration", time.Since(start).Round(time.Millisecond),
		"newNodes", summary.Details.NewNodesAdded, "workersJoined", summary.Details.WorkersJoined)
	return summary, nil
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{name: "validate", fn: o.validate},
		{name: "resolve-master", fn: o.resolveMaster},
		{name: "probe", fn: o.probe},
		{name: "plan", fn: o.planJoins},
		{name: "master", fn: o.bootstrapMaster},
		{name: "token", fn: o.fetchToken},
		{name: "workers", fn: o.joinWorkers},
		{name: "manifests", fn: o.applyManifests},
		{name: "verify", fn: o.verify},
	}
}

func (o *Orchestrator) runStages(ctx context.Context, log logr.Logger, r *run, stages []stage) error {
	for i, s := range stages {
		stageStart := time.Now()
		stageLog := log.WithValues("stage", s.name, "step", fmt.Sprintf("%d/%d", i+1, len(stages)))
		stageLog.V(1).Info("stage starting")

		if err := s.fn(ctx, r); err != nil {
			stageLog.Error(err, "stage failed")
			return &StageError{Stage: s.name, Err: err}
		}

		stageLog.V(1).Info("stage completed", "duration", time.Since(stageStart).Round(time.Millisecond))
	}
	return nil
}

func (o *Orchestrator) validate(_ context.Context, r *run) error {
	r.rep.Progress(5, "Validating deployment files...", progress.StepMaster)
	return o.bundle.Validate()
}

func (o *Orchestrator) resolveMaster(ctx context.Context, r *run) error {
	r.rep.Progress(8, "Identifying master node...", "")

	nodes, err := o.deps.Registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list registry nodes: %w", err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: registry is empty, add nodes first", ErrNoMaster)
	}
	r.nodes = nodes

	master, ok, err := o.deps.Registry.CurrentMaster(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up master: %w", err)
	}
	if !ok {
		return ErrNoMaster
	}
	r.master = master
	r.rep.Progress(10, fmt.Sprintf("Using master node: %s at %s", master.Name, master.Address), "")

	sess, err := o.deps.Connector.Connect(ctx, master)
	if err != nil {
		return fmt.Errorf("failed to connect to master %s: %w", master.Name, err)
	}
	r.session = sess
	return nil
}

func (o *Orchestrator) probe(ctx context.Context, r *run) error {
	log := logr.FromContextOrDiscard(ctx)

	cp, err := o.deps.ControlPlanes.ForMaster(ctx, r.master, r.session)
	if err != nil {
		log.V(1).Info("no control plane yet", "error", err.Error())
		cp = nil
	}
	r.cp = cp

	prober := NewProber(cp)
	r.live = prober.ListLiveNodes(ctx)
	names := sets.List(r.live)
	log.Info("probed cluster", "liveNodes", names, "healthy", prober.IsControlPlaneHealthy(ctx))
	r.rep.Progress(15, fmt.Sprintf("Found %d existing nodes in cluster: %s", len(names), strings.Join(names, ", ")), "")
	return nil
}

func (o *Orchestrator) planJoins(ctx context.Context, r *run) error {
	r.plan = NewPlan(r.nodes, r.live, r.master.Name)
	logr.FromContextOrDiscard(ctx).Info("reconciliation plan", "join", r.plan.JoinNames(), "skip", r.plan.SkipNames())
	r.rep.Progress(20, fmt.Sprintf("%d nodes to join, %d already in cluster", len(r.plan.JoinSet), len(r.plan.SkipSet)), "")
	return nil
}

func (o *Orchestrator) bootstrapMaster(ctx context.Context, r *run) error {
	r.rep.Progress(25, "Setting up master node...", progress.StepMaster)
	b := NewMasterBootstrapper(o.bundle, o.opts, o.deps.ControlPlanes, o.deps.Charts)
	outcome, err := b.Bootstrap(ctx, r.master, r.session, r.live, r.cp, r.rep)
	if err != nil {
		return err
	}
	r.outcome = outcome
	r.cp = outcome.ControlPlane
	return nil
}

func (o *Orchestrator) fetchToken(ctx context.Context, r *run) error {
	r.rep.Progress(80, "Retrieving join token...", progress.StepWorkers)
	token, err := NewTokenBroker(o.opts.TokenPath, r.session).GetJoinToken(ctx)
	if err != nil {
		return err
	}
	r.token = token
	return nil
}

func (o *Orchestrator) joinWorkers(ctx context.Context, r *run) error {
	for _, n := range r.plan.SkipSet {
		r.rep.Progress(82, fmt.Sprintf("Node %s already in cluster, skipping", n.Name), "")
	}
	if len(r.plan.JoinSet) == 0 {
		r.rep.Progress(92, "All nodes already joined cluster, skipping node joining", "")
		return nil
	}

	r.rep.Progress(83, fmt.Sprintf("Joining %d new nodes to cluster...", len(r.plan.JoinSet)), "")
	total := len(r.plan.JoinSet)
	var (
		mu   sync.Mutex
		done int
	)
	report := func(res JoinResult) {
		mu.Lock()
		done++
		percent := 83 + (done*9)/total
		mu.Unlock()

		if res.Joined() {
			r.rep.Progress(percent, fmt.Sprintf("Successfully joined %s to cluster", res.Node), "")
		} else {
			r.rep.Progress(percent, fmt.Sprintf("Failed to join %s: %v", res.Node, res.Err), "")
		}
	}

	joiner := NewWorkerJoiner(o.deps.Connector, r.master, o.opts.APIPort, o.opts.Concurrency, o.deps.Metrics)
	r.workers = joiner.JoinAll(ctx, r.plan.JoinSet, r.token, report)
	return nil
}

func (o *Orchestrator) applyManifests(ctx context.Context, r *run) error {
	r.applied = NewManifestApplier(o.bundle, o.opts, o.deps.Metrics).Apply(ctx, r.cp, r.rep)
	return nil
}

// verify never fails the run; problems end up in the final message.
func (o *Orchestrator) verify(ctx context.Context, r *run) error {
	r.rep.Progress(99, "Performing final checks...", progress.StepComplete)

	nodes, err := r.cp.ListNodes(ctx)
	if err != nil {
		r.verdict = fmt.Sprintf("Deployment completed (checks had issues: %v)", err)
		return nil
	}
	pods, err := r.cp.CountRunningPods(ctx, o.opts.Namespace)
	if err != nil {
		r.verdict = fmt.Sprintf("Deployment completed (checks had issues: %v)", err)
		return nil
	}
	r.verdict = fmt.Sprintf("Deployment completed successfully! Cluster has %d nodes and %d running pods", len(nodes), pods)
	return nil
}

func (o *Orchestrator) summarize(r *run) *Summary {
	present := r.live.Clone().Insert(r.workers.JoinedNames()...)
	workersJoined := 0
	for _, n := range r.nodes {
		if n.Name != r.master.Name && present.Has(n.Name) {
			workersJoined++
		}
	}

	setup := MasterSetupCompleted
	if r.outcome.Skipped() {
		setup = MasterSetupSkipped
	}

	message := "Deployment to all nodes completed successfully!"
	if o.opts.Monitoring.Enabled {
		message += " Check Grafana dashboard at " + GrafanaURL(r.master, o.opts.Monitoring.GrafanaNodePort)
	}

	return &Summary{
		Success: true,
		Message: message,
		Details: Details{
			MasterSetup:            setup,
			WorkersJoined:          workersJoined,
			NewNodesAdded:          r.workers.Joined(),
			ManifestsApplied:       len(r.applied.Applied),
			ConfigResourcesCreated: r.applied.ConfigResources,
		},
	}
}

// GrafanaURL returns the dashboard address exposed on the master.
func GrafanaURL(master registry.Node, nodePort int32) string {
	return "http://" + net.JoinHostPort(master.Address, strconv.Itoa(int(nodePort)))
}
