package labels

import (
	"sort"
	"strings"
)

// Node label keys.
const (
	// KeyRole is the workload placement role (edge or iot).
	KeyRole = "role"

	// KeyName repeats the registry name of the node.
	KeyName = "name"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "edgefleet.io/managed-by"
)

// ManagedByEdgefleet is the KeyManagedBy value set on every joined node.
const ManagedByEdgefleet = "edgefleet"

// LabelBuilder provides a fluent interface for building node labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the managed-by label pre-set.
func NewLabelBuilder() *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyManagedBy: ManagedByEdgefleet,
		},
	}
}

// WithRole sets the role label.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithName sets the name label.
func (lb *LabelBuilder) WithName(name string) *LabelBuilder {
	lb.labels[KeyName] = name
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// AgentFlags renders the labels as k3s --node-label flags. Role and name come
// first, the remaining labels follow in key order.
func (lb *LabelBuilder) AgentFlags() string {
	keys := make([]string, 0, len(lb.labels))
	for k := range lb.labels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	flags := make([]string, 0, len(keys))
	for _, k := range keys {
		flags = append(flags, "--node-label "+k+"="+lb.labels[k])
	}
	return strings.Join(flags, " ")
}

func rank(key string) int {
	switch key {
	case KeyRole:
		return 0
	case KeyName:
		return 1
	default:
		return 2
	}
}
