package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/registry"
)

type lifecycleFixture struct {
	store     *memStore
	connector *fakeConnector
	cluster   *fakeCluster
	factory   *fakeFactory
	manager   *NodeManager
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		store: newMemStore(
			testNode("nuc2", "10.0.0.1", registry.KindEdge, true),
			testNode("pi-1", "10.0.0.3", registry.KindConstrained, false),
		),
		connector: newFakeConnector(),
		cluster:   newFakeCluster(),
	}
	f.cluster.addNode("nuc2", true)
	f.cluster.addNode("pi-1", true)
	f.factory = &fakeFactory{cluster: f.cluster, reachable: true}
	f.manager = NewNodeManager(f.store, f.connector, f.factory)
	return f
}

func TestRemoveNode(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()

	require.NoError(t, f.manager.RemoveNode(context.Background(), "pi-1"))

	assert.True(t, f.connector.host("pi-1").ran("sudo "+agentUninstall))
	assert.Equal(t, []string{"pi-1"}, f.cluster.drained)
	assert.Equal(t, []string{"pi-1"}, f.cluster.removed)
	_, err := f.store.Get(context.Background(), "pi-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRemoveNode_MasterProtected(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()

	err := f.manager.RemoveNode(context.Background(), "nuc2")
	require.ErrorIs(t, err, registry.ErrMasterProtected)

	assert.Empty(t, f.connector.dials, "no side effects on the master")
	assert.Empty(t, f.cluster.removed)
	_, err = f.store.Get(context.Background(), "nuc2")
	assert.NoError(t, err)
}

func TestRemoveNode_FollowsCurrentMaster(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()
	ctx := context.Background()

	// Promote pi-1; the old master becomes removable.
	pi, err := f.store.Get(ctx, "pi-1")
	require.NoError(t, err)
	pi.IsMaster = true
	require.NoError(t, f.store.Add(ctx, pi))

	require.ErrorIs(t, f.manager.RemoveNode(ctx, "pi-1"), registry.ErrMasterProtected)
	require.NoError(t, f.manager.RemoveNode(ctx, "nuc2"))
}

func TestRemoveNode_BestEffortSteps(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()
	f.connector.fail["pi-1"] = errors.New("host down")
	f.factory.setReachable(false)

	require.NoError(t, f.manager.RemoveNode(context.Background(), "pi-1"))
	_, err := f.store.Get(context.Background(), "pi-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRemoveNode_UninstallFailureIgnored(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()
	f.connector.host("pi-1").on(agentUninstall, ssh.Result{ExitCode: 127, Stderr: "not found"})

	require.NoError(t, f.manager.RemoveNode(context.Background(), "pi-1"))
	assert.Equal(t, []string{"pi-1"}, f.cluster.removed)
}

func TestRemoveNode_Unknown(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()

	require.ErrorIs(t, f.manager.RemoveNode(context.Background(), "ghost"), registry.ErrNotFound)
	assert.Empty(t, f.connector.dials)
}

func TestFleet(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()
	require.NoError(t, f.store.Add(context.Background(), testNode("pi-2", "10.0.0.4", registry.KindConstrained, false)))
	f.cluster.addNode("pi-1", false)

	fleet, err := f.manager.Fleet(context.Background())
	require.NoError(t, err)
	require.Len(t, fleet, 3)

	assert.Equal(t, "nuc2", fleet[0].Name)
	assert.Equal(t, StatusOnline, fleet[0].Status)
	assert.True(t, fleet[0].IsMaster)
	assert.Equal(t, "pi-1", fleet[1].Name)
	assert.Equal(t, StatusOffline, fleet[1].Status)
	assert.Equal(t, "pi-2", fleet[2].Name)
	assert.Equal(t, StatusPending, fleet[2].Status)
}

func TestFleet_UnreachableClusterIsPending(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()
	f.factory.setReachable(false)

	fleet, err := f.manager.Fleet(context.Background())
	require.NoError(t, err)
	for _, n := range fleet {
		assert.Equal(t, StatusPending, n.Status, n.Name)
	}
}

// stalledConnector never completes a dial before the context ends.
type stalledConnector struct{}

func (stalledConnector) Connect(ctx context.Context, _ registry.Node) (Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFleet_UnreachableMasterIsBounded(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()
	f.factory.setReachable(false)
	manager := NewNodeManager(f.store, stalledConnector{}, f.factory, WithFleetTimeout(50*time.Millisecond))

	start := time.Now()
	fleet, err := manager.Fleet(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, fleet, 2)
	for _, n := range fleet {
		assert.Equal(t, StatusPending, n.Status, n.Name)
	}
}

// fileFactory serves a control plane from a local kubeconfig.
type fileFactory struct {
	*fakeFactory
}

func (fileFactory) NeedsSession() bool { return false }

func TestFleet_KubeconfigFileSkipsSSH(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture()
	manager := NewNodeManager(f.store, f.connector, fileFactory{f.factory})

	fleet, err := manager.Fleet(context.Background())
	require.NoError(t, err)

	require.Len(t, fleet, 2)
	assert.Equal(t, StatusOnline, fleet[0].Status)
	assert.Empty(t, f.connector.dials, "the master is not dialed")
}

func TestMergeFleet(t *testing.T) {
	t.Parallel()
	nodes := []registry.Node{testNode("pi-1", "10.0.0.3", registry.KindConstrained, false)}
	live := []k8s.LiveNode{
		{Name: "pi-1", Address: "10.0.0.30", Ready: true, Capacity: map[string]string{"cpu": "4"}},
		{Name: "stray", Address: "10.0.0.99", Ready: false},
	}

	fleet := MergeFleet(nodes, live)
	require.Len(t, fleet, 2)

	assert.Equal(t, FleetNode{
		Name:       "pi-1",
		Address:    "10.0.0.30",
		Kind:       registry.KindConstrained,
		Registered: true,
		Status:     StatusOnline,
		Capacity:   map[string]string{"cpu": "4"},
	}, fleet[0])
	assert.Equal(t, "stray", fleet[1].Name)
	assert.False(t, fleet[1].Registered)
	assert.Equal(t, StatusOffline, fleet[1].Status)
}
