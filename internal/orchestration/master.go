package orchestration

import (
	"context"
	"fmt"
	"path"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/registry"
	"github.com/imamik/edgefleet/internal/util/retry"
)

// MasterState is a step of control-plane bootstrap.
type MasterState string

// Master bootstrap states.
const (
	MasterUnconverged       MasterState = "unconverged"
	MasterInstalling        MasterState = "installing"
	MasterAwaitingReadiness MasterState = "awaiting-readiness"
	MasterAuxiliaryInstall  MasterState = "auxiliary-install"
	MasterConverged         MasterState = "converged"
	MasterAlreadyConverged  MasterState = "already-converged"
)

const (
	monitoringRepoURL = "https://prometheus-community.github.io/helm-charts"
	monitoringChart   = "kube-prometheus-stack"
	grafanaSelector   = "app.kubernetes.io/name=grafana"
	grafanaContainer  = "grafana"
	grafanaPort       = 80
)

// MasterOutcome is the result of a bootstrap.
type MasterOutcome struct {
	State        MasterState
	ControlPlane ControlPlane

	// AuxiliaryFailures counts best-effort steps that failed.
	AuxiliaryFailures int
	FilesCopied       int
}

// Skipped reports whether the install was skipped.
func (o MasterOutcome) Skipped() bool {
	return o.State == MasterAlreadyConverged
}

// MasterBootstrapper installs k3s on the master and prepares it.
type MasterBootstrapper struct {
	bundle        Bundle
	opts          Options
	controlPlanes ControlPlaneFactory
	charts        ChartInstaller
}

// NewMasterBootstrapper creates a bootstrapper. charts may be nil when the
// monitoring stack is disabled.
func NewMasterBootstrapper(bundle Bundle, opts Options, controlPlanes ControlPlaneFactory, charts ChartInstaller) *MasterBootstrapper {
	return &MasterBootstrapper{
		bundle:        bundle,
		opts:          opts.withDefaults(),
		controlPlanes: controlPlanes,
		charts:        charts,
	}
}

// auxStep is a best-effort step run after the control plane comes up.
type auxStep struct {
	name string
	run  func(ctx context.Context, sess Session, cp ControlPlane) error
}

// Bootstrap converges the master. existing is the handle obtained while
// probing and may be nil. The install is skipped when k3s is active on the
// master and the master is already a cluster member.
func (b *MasterBootstrapper) Bootstrap(ctx context.Context, master registry.Node, sess Session, live sets.Set[string], existing ControlPlane, rep *progress.Reporter) (MasterOutcome, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("master").WithValues("node", master.Name)
	out := MasterOutcome{State: MasterUnconverged}

	if live.Has(master.Name) && b.k3sActive(ctx, sess) {
		out.State = MasterAlreadyConverged
		rep.Progress(50, "Master node already setup, skipping installation...", progress.StepMaster)
		log.Info("master already converged, skipping installation")

		cp := existing
		if cp == nil {
			var err error
			if cp, err = b.controlPlanes.ForMaster(ctx, master, sess); err != nil {
				return out, fmt.Errorf("failed to acquire control plane: %w", err)
			}
		}
		out.ControlPlane = cp
		return out, nil
	}

	out.State = MasterInstalling
	rep.Progress(30, fmt.Sprintf("Installing k3s on %s...", master.Name), progress.StepMaster)
	if err := b.install(ctx, master, sess); err != nil {
		return out, err
	}
	log.Info("k3s installed")

	out.State = MasterAwaitingReadiness
	rep.Progress(40, "Waiting for k3s to settle...", "")
	if err := retry.Sleep(ctx, b.opts.SettleDelay); err != nil {
		return out, err
	}
	cp, err := b.controlPlanes.ForMaster(ctx, master, sess)
	if err != nil {
		return out, fmt.Errorf("failed to acquire control plane: %w", err)
	}
	out.ControlPlane = cp
	rep.Progress(45, "Control plane is reachable", "")

	out.State = MasterAuxiliaryInstall
	steps := b.auxiliarySteps()
	for i, step := range steps {
		rep.Progress(45+(i*25)/len(steps), fmt.Sprintf("Installing component %d/%d: %s...", i+1, len(steps), step.name), "")
		if err := step.run(ctx, sess, cp); err != nil {
			out.AuxiliaryFailures++
			log.Error(err, "auxiliary step failed, continuing", "step", step.name)
			continue
		}
		log.V(1).Info("auxiliary step done", "step", step.name)
	}

	rep.Progress(72, "Copying application files to master...", "")
	out.FilesCopied = b.distribute(ctx, log, master, sess)

	out.State = MasterConverged
	log.Info("master converged", "auxiliaryFailures", out.AuxiliaryFailures, "filesCopied", out.FilesCopied)
	return out, nil
}

func (b *MasterBootstrapper) k3sActive(ctx context.Context, sess Session) bool {
	active, err := probe(ctx, sess, "systemctl is-active --quiet k3s")
	return err == nil && active
}

func (b *MasterBootstrapper) install(ctx context.Context, master registry.Node, sess Session) error {
	script, err := b.bundle.Read(b.opts.InstallScript)
	if err != nil {
		return err
	}
	remote := path.Join(homeDir(master.Username), b.opts.InstallScript)
	if err := sess.Upload(ctx, remote, script, 0o755); err != nil {
		return err
	}
	if res := sess.Execute(ctx, "sudo "+remote); !res.OK() {
		return fmt.Errorf("k3s install script failed on %s: %s", master.Name, res.Summary())
	}
	return nil
}

func (b *MasterBootstrapper) auxiliarySteps() []auxStep {
	steps := []auxStep{{
		name: "host tooling",
		run: func(ctx context.Context, sess Session, _ ControlPlane) error {
			_, err := ensure(ctx, sess, prereqPython)
			return err
		},
	}}
	if !b.opts.Monitoring.Enabled {
		return steps
	}

	mon := b.opts.Monitoring
	grafana := mon.Release + "-grafana"

	return append(steps,
		auxStep{name: "monitoring stack", run: func(ctx context.Context, _ Session, cp ControlPlane) error {
			if b.charts == nil {
				return fmt.Errorf("no chart installer configured")
			}
			return b.charts.InstallOrUpgrade(ctx, cp.Kubeconfig(), k8s.ChartSpec{
				RepoURL:   monitoringRepoURL,
				Chart:     monitoringChart,
				Version:   mon.ChartVersion,
				Release:   mon.Release,
				Namespace: mon.Namespace,
				Values: map[string]any{
					"grafana":    map[string]any{"service": map[string]any{"type": "NodePort"}},
					"prometheus": map[string]any{"service": map[string]any{"type": "NodePort"}},
				},
				Timeout: mon.RolloutTimeout,
			})
		}},
		auxStep{name: "grafana ready", run: func(ctx context.Context, _ Session, cp ControlPlane) error {
			return cp.WaitForPodsReady(ctx, mon.Namespace, grafanaSelector, mon.RolloutTimeout)
		}},
		auxStep{name: "grafana embedding", run: func(ctx context.Context, _ Session, cp ControlPlane) error {
			return cp.SetContainerEnv(ctx, mon.Namespace, grafana, grafanaContainer, []corev1.EnvVar{
				{Name: "GF_SECURITY_ALLOW_EMBEDDING", Value: "true"},
				{Name: "GF_AUTH_ANONYMOUS_ENABLED", Value: "true"},
				{Name: "GF_AUTH_ANONYMOUS_ORG_ROLE", Value: "Viewer"},
			})
		}},
		auxStep{name: "grafana node port", run: func(ctx context.Context, _ Session, cp ControlPlane) error {
			return cp.SetNodePort(ctx, mon.Namespace, grafana, grafanaPort, mon.GrafanaNodePort)
		}},
		auxStep{name: "grafana restart", run: func(ctx context.Context, _ Session, cp ControlPlane) error {
			return cp.RolloutRestart(ctx, mon.Namespace, grafana)
		}},
		auxStep{name: "grafana rollout", run: func(ctx context.Context, _ Session, cp ControlPlane) error {
			return cp.WaitForDeployment(ctx, mon.Namespace, grafana, mon.RolloutTimeout)
		}},
	)
}

// distribute copies the bundle to the master's home directory. Missing or
// failed files are logged and skipped.
func (b *MasterBootstrapper) distribute(ctx context.Context, log logr.Logger, master registry.Node, sess Session) int {
	home := homeDir(master.Username)
	copied := 0
	for _, name := range MasterFiles {
		data, err := b.bundle.Read(name)
		if err != nil {
			log.Info("file not found, skipping", "file", name)
			continue
		}
		if err := sess.Upload(ctx, path.Join(home, name), data, 0o644); err != nil {
			log.Error(err, "failed to copy file", "file", name)
			continue
		}
		copied++
	}
	return copied
}

func homeDir(username string) string {
	if username == "root" {
		return "/root"
	}
	return path.Join("/home", username)
}
