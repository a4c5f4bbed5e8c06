// Package testing provides test utilities, builders, and fixtures shared by
// the server and command tests.
//
//   - NodeBuilder / ConfigBuilder: fluent builders for registry nodes and configs
//   - MockStore, MockDeployer, MockNodeManager: testify mocks of the service seams
//   - WriteBundle: a complete deployment files directory on disk
//
// Usage:
//
//	node := testing.NewNodeBuilder("pi-1").
//	    WithAddress("192.168.0.12").
//	    Constrained().
//	    Build()
//
//	store := testing.NewMockStore()
//	store.On("Add", mock.Anything, node).Return(nil)
//
// The orchestration package keeps its own fakes; it cannot import this
// package without a cycle.
package testing
