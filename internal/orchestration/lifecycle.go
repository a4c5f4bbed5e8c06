package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/edgefleet/internal/registry"
)

// NodeManager handles node removal and the fleet view.
type NodeManager struct {
	registry      registry.Store
	connector     Connector
	controlPlanes ControlPlaneFactory
	drainTimeout  time.Duration
	fleetTimeout  time.Duration
}

// NodeManagerOption configures a NodeManager.
type NodeManagerOption func(*NodeManager)

// WithFleetTimeout bounds how long Fleet waits for the control plane before
// reporting registry data only.
func WithFleetTimeout(d time.Duration) NodeManagerOption {
	return func(m *NodeManager) {
		m.fleetTimeout = d
	}
}

// NewNodeManager creates a node manager.
func NewNodeManager(store registry.Store, connector Connector, controlPlanes ControlPlaneFactory, opts ...NodeManagerOption) *NodeManager {
	m := &NodeManager{
		registry:      store,
		connector:     connector,
		controlPlanes: controlPlanes,
		drainTimeout:  defaultDrainTimeout,
		fleetTimeout:  defaultFleetTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RemoveNode takes a worker out of the fleet: it uninstalls the agent on the
// node, drains and deletes it in the cluster, then removes it from the
// registry. The first two steps are best-effort. The current master is never
// removed.
func (m *NodeManager) RemoveNode(ctx context.Context, name string) error {
	log := logr.FromContextOrDiscard(ctx).WithName("lifecycle").WithValues("node", name)

	master, hasMaster, err := m.registry.CurrentMaster(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up master: %w", err)
	}
	if hasMaster && master.Name == name {
		return fmt.Errorf("%w: %s", registry.ErrMasterProtected, name)
	}

	node, err := m.registry.Get(ctx, name)
	if err != nil {
		return err
	}

	if err := m.dejoin(ctx, node); err != nil {
		log.Error(err, "failed to uninstall agent, continuing")
	}

	if hasMaster {
		if err := m.evict(ctx, master, name); err != nil {
			log.Error(err, "failed to remove node from cluster, continuing")
		}
	}

	if err := m.registry.Remove(ctx, name); err != nil {
		return fmt.Errorf("failed to remove %s from registry: %w", name, err)
	}
	log.Info("node removed")
	return nil
}

func (m *NodeManager) dejoin(ctx context.Context, node registry.Node) error {
	sess, err := m.connector.Connect(ctx, node)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if res := sess.Execute(ctx, "sudo "+agentUninstall); !res.OK() {
		return fmt.Errorf("agent uninstall failed: %s", res.Summary())
	}
	return nil
}

func (m *NodeManager) evict(ctx context.Context, master registry.Node, name string) error {
	cp, release, err := m.controlPlane(ctx, master)
	if err != nil {
		return err
	}
	defer release()

	if err := cp.Drain(ctx, name, m.drainTimeout); err != nil {
		logr.FromContextOrDiscard(ctx).V(1).Info("drain failed", "node", name, "error", err.Error())
	}
	return cp.DeleteNode(ctx, name)
}

// controlPlane acquires a handle through the master. The returned release
// func closes the master session.
func (m *NodeManager) controlPlane(ctx context.Context, master registry.Node) (ControlPlane, func(), error) {
	if f, ok := m.controlPlanes.(interface{ NeedsSession() bool }); ok && !f.NeedsSession() {
		cp, err := m.controlPlanes.ForMaster(ctx, master, nil)
		if err != nil {
			return nil, nil, err
		}
		return cp, func() {}, nil
	}

	sess, err := m.connector.Connect(ctx, master)
	if err != nil {
		// A configured kubeconfig does not need the session.
		sess = nil
	}
	release := func() {
		if sess != nil {
			_ = sess.Close()
		}
	}

	cp, cpErr := m.controlPlanes.ForMaster(ctx, master, sess)
	if cpErr != nil {
		release()
		if err != nil {
			return nil, nil, fmt.Errorf("%w (master unreachable: %v)", cpErr, err)
		}
		return nil, nil, cpErr
	}
	return cp, release, nil
}
