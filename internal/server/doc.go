// Package server exposes deploy runs, live progress, and fleet management
// over HTTP.
//
// Routes:
//
//	POST   /api/deploy          start a run (409 while one is active,
//	                            ?wait=true answers with the result)
//	GET    /api/deploy/status   state and result of the last run
//	GET    /api/progress        progress events as server-sent events
//	GET    /api/nodes           fleet view (registry merged with the cluster)
//	POST   /api/nodes           register a node
//	DELETE /api/nodes/{name}    remove a node (403 for the master)
//	GET    /api/health          liveness
//	GET    /metrics             Prometheus metrics
//
// There is no authentication; bind to a trusted network.
package server
