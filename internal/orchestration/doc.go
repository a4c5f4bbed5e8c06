// Package orchestration converges the node registry and the live k3s cluster.
//
// A deploy run is a fixed sequence of stages:
//
//	validate files -> resolve master -> probe -> plan -> master bootstrap
//	  -> join token -> worker fan-out -> manifests -> verification
//
// Stages run one after another on a context detached from the caller. A stage
// returning an error aborts the run with a *StageError; failures that only
// affect one target (a worker, a manifest, an auxiliary component) are logged
// and counted instead. Progress is published through a progress.Publisher.
//
// Node removal and the fleet view live on NodeManager and run outside the
// pipeline.
package orchestration
