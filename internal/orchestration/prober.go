package orchestration

import (
	"context"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Prober reads live cluster membership. It never fails: without a
// control-plane handle, or when the API is unreachable, the cluster is
// reported empty and unhealthy.
type Prober struct {
	cp ControlPlane
}

// NewProber creates a prober. cp may be nil when no cluster exists yet.
func NewProber(cp ControlPlane) *Prober {
	return &Prober{cp: cp}
}

// ListLiveNodes returns the names of the nodes currently in the cluster.
func (p *Prober) ListLiveNodes(ctx context.Context) sets.Set[string] {
	live := sets.New[string]()
	if p.cp == nil {
		return live
	}
	nodes, err := p.cp.ListNodes(ctx)
	if err != nil {
		logr.FromContextOrDiscard(ctx).V(1).Info("could not list cluster nodes", "error", err.Error())
		return live
	}
	for _, n := range nodes {
		live.Insert(n.Name)
	}
	return live
}

// IsControlPlaneHealthy reports whether the API server answers.
func (p *Prober) IsControlPlaneHealthy(ctx context.Context) bool {
	return p.cp != nil && p.cp.Healthy(ctx)
}
