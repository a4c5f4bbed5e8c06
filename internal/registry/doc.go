// Package registry persists the desired fleet: every machine that should be
// part of the cluster, with its credentials, kind and master flag.
//
// The registry is the source of truth for membership. At most one node is
// flagged as master at any time; promoting a node demotes the previous master
// atomically, and the master cannot be removed.
package registry
