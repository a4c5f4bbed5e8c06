// Package labels builds the Kubernetes node labels workers join with.
//
// Every joined node carries its role and name, plus a managed-by label so
// nodes joined by edgefleet can be told apart from hand-joined ones.
package labels
