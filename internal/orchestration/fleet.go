package orchestration

import (
	"context"
	"sort"

	"github.com/go-logr/logr"

	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/registry"
)

// FleetStatus is the state of a node as seen from registry and cluster.
type FleetStatus string

// Fleet statuses.
const (
	// StatusPending nodes are registered but not in the cluster.
	StatusPending FleetStatus = "pending"
	// StatusOnline nodes are in the cluster and Ready.
	StatusOnline FleetStatus = "online"
	// StatusOffline nodes are in the cluster but not Ready.
	StatusOffline FleetStatus = "offline"
)

// FleetNode merges a registry entry with its live cluster node.
type FleetNode struct {
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	Kind        registry.Kind     `json:"kind,omitempty"`
	IsMaster    bool              `json:"isMaster"`
	Registered  bool              `json:"registered"`
	Status      FleetStatus       `json:"status"`
	Labels      map[string]string `json:"labels,omitempty"`
	Capacity    map[string]string `json:"capacity,omitempty"`
	Allocatable map[string]string `json:"allocatable,omitempty"`
}

// Fleet lists every registered node plus any cluster node missing from the
// registry. Without a reachable control plane all registered nodes are
// reported pending. The control-plane lookup is bounded by the fleet timeout.
func (m *NodeManager) Fleet(ctx context.Context) ([]FleetNode, error) {
	nodes, err := m.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	var live []k8s.LiveNode
	if master, ok, err := m.registry.CurrentMaster(ctx); err == nil && ok {
		live = m.liveNodes(ctx, master)
	}

	return MergeFleet(nodes, live), nil
}

func (m *NodeManager) liveNodes(ctx context.Context, master registry.Node) []k8s.LiveNode {
	log := logr.FromContextOrDiscard(ctx).WithName("fleet")

	if m.fleetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.fleetTimeout)
		defer cancel()
	}

	cp, release, err := m.controlPlane(ctx, master)
	if err != nil {
		log.V(1).Info("control plane unavailable", "error", err.Error())
		return nil
	}
	defer release()

	live, err := cp.ListNodes(ctx)
	if err != nil {
		log.V(1).Info("could not list cluster nodes", "error", err.Error())
		return nil
	}
	return live
}

// MergeFleet joins registry nodes with live nodes by name. The result is
// ordered by name.
func MergeFleet(nodes []registry.Node, live []k8s.LiveNode) []FleetNode {
	byName := make(map[string]k8s.LiveNode, len(live))
	for _, ln := range live {
		byName[ln.Name] = ln
	}

	out := make([]FleetNode, 0, len(nodes)+len(live))
	for _, n := range nodes {
		fn := FleetNode{
			Name:       n.Name,
			Address:    n.Address,
			Kind:       n.Kind,
			IsMaster:   n.IsMaster,
			Registered: true,
			Status:     StatusPending,
		}
		if ln, ok := byName[n.Name]; ok {
			applyLive(&fn, ln)
			delete(byName, n.Name)
		}
		out = append(out, fn)
	}
	for _, ln := range byName {
		fn := FleetNode{Name: ln.Name, Address: ln.Address}
		applyLive(&fn, ln)
		out = append(out, fn)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func applyLive(fn *FleetNode, ln k8s.LiveNode) {
	fn.Status = StatusOffline
	if ln.Ready {
		fn.Status = StatusOnline
	}
	if ln.Address != "" {
		fn.Address = ln.Address
	}
	fn.Labels = ln.Labels
	fn.Capacity = ln.Capacity
	fn.Allocatable = ln.Allocatable
}
