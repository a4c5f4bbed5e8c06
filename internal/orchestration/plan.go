package orchestration

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/edgefleet/internal/registry"
)

// Plan partitions the registry's workers against the live cluster.
type Plan struct {
	// JoinSet holds registry workers missing from the cluster.
	JoinSet []registry.Node
	// SkipSet holds registry workers already in the cluster.
	SkipSet []registry.Node
}

// NewPlan computes the plan. Nodes are matched by name only; the master is in
// neither set. Input order is preserved.
func NewPlan(nodes []registry.Node, live sets.Set[string], masterName string) Plan {
	var p Plan
	for _, n := range nodes {
		if n.Name == masterName {
			continue
		}
		if live.Has(n.Name) {
			p.SkipSet = append(p.SkipSet, n)
		} else {
			p.JoinSet = append(p.JoinSet, n)
		}
	}
	return p
}

// JoinNames returns the names in the join set.
func (p Plan) JoinNames() []string {
	return names(p.JoinSet)
}

// SkipNames returns the names in the skip set.
func (p Plan) SkipNames() []string {
	return names(p.SkipSet)
}

func names(nodes []registry.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}
