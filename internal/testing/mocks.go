package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/edgefleet/internal/orchestration"
	"github.com/imamik/edgefleet/internal/registry"
)

// MockStore is a testify mock of registry.Store.
type MockStore struct {
	mock.Mock
}

var _ registry.Store = (*MockStore)(nil)

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Add records the call.
func (m *MockStore) Add(ctx context.Context, node registry.Node) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}

// Get returns the configured node.
func (m *MockStore) Get(ctx context.Context, name string) (registry.Node, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(registry.Node), args.Error(1)
}

// List returns the configured nodes.
func (m *MockStore) List(ctx context.Context) ([]registry.Node, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]registry.Node), args.Error(1)
}

// Remove records the call.
func (m *MockStore) Remove(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// CurrentMaster returns the configured master.
func (m *MockStore) CurrentMaster(ctx context.Context) (registry.Node, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(registry.Node), args.Bool(1), args.Error(2)
}

// WithMaster configures CurrentMaster to return node.
func (m *MockStore) WithMaster(node registry.Node) *MockStore {
	m.On("CurrentMaster", mock.Anything).Return(node, true, nil)
	return m
}

// MockDeployer is a testify mock of the deploy pipeline entry point.
type MockDeployer struct {
	mock.Mock
}

// Run returns the configured summary.
func (m *MockDeployer) Run(ctx context.Context) (*orchestration.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestration.Summary), args.Error(1)
}

// Running returns the configured state.
func (m *MockDeployer) Running() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockNodeManager is a testify mock of the fleet view and node removal.
type MockNodeManager struct {
	mock.Mock
}

// Fleet returns the configured fleet.
func (m *MockNodeManager) Fleet(ctx context.Context) ([]orchestration.FleetNode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]orchestration.FleetNode), args.Error(1)
}

// RemoveNode records the call.
func (m *MockNodeManager) RemoveNode(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// SuccessfulSummary is the summary of a run that joined joined new workers.
func SuccessfulSummary(joined int) *orchestration.Summary {
	return &orchestration.Summary{
		Success: true,
		Message: "Deployment to all nodes completed successfully!",
		Details: orchestration.Details{
			MasterSetup:            orchestration.MasterSetupCompleted,
			WorkersJoined:          joined,
			NewNodesAdded:          joined,
			ManifestsApplied:       len(orchestration.ManifestOrder),
			ConfigResourcesCreated: 1,
		},
	}
}
