package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/registry"
)

func TestRun_RejectsConcurrentRuns(t *testing.T) {
	t.Parallel()
	master := testNode("nuc2", "10.0.0.1", registry.KindEdge, true)
	h := newHarness(t, master)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.connector.host(master.Name).onFunc(defaultInstallScript, func(string) ssh.Result {
		close(entered)
		<-release
		h.factory.setReachable(true)
		return ssh.Result{}
	})

	o := h.orchestrator()
	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background())
		done <- err
	}()

	<-entered
	assert.True(t, o.Running())
	_, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, o.Running())
}

func TestRun_IgnoresCallerCancellation(t *testing.T) {
	t.Parallel()
	master := testNode("nuc2", "10.0.0.1", registry.KindEdge, true)
	worker := testNode("pi-1", "10.0.0.3", registry.KindConstrained, false)
	h := newHarness(t, master, worker)

	ctx, cancel := context.WithCancel(context.Background())
	h.connector.host(master.Name).onFunc(defaultInstallScript, func(string) ssh.Result {
		// The triggering request goes away mid-run.
		cancel()
		h.factory.setReachable(true)
		h.cluster.addNode(master.Name, true)
		return ssh.Result{}
	})
	h.opts.SettleDelay = 10 * time.Millisecond

	summary, err := h.orchestrator().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Details.NewNodesAdded)
}

func TestRun_Metrics(t *testing.T) {
	t.Parallel()
	master := testNode("nuc2", "10.0.0.1", registry.KindEdge, true)
	h := newHarness(t, master, testNode("pi-1", "10.0.0.3", registry.KindConstrained, false))
	h.metrics = NewMetrics(prometheus.NewRegistry())
	o := h.orchestrator()

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	h.connector.host(master.Name).on(defaultInstallScript, ssh.Result{ExitCode: 1})
	_, err = o.Run(context.Background())
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.runsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.runsTotal.WithLabelValues("failure")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(h.metrics.manifestsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.joinsTotal.WithLabelValues("constrained", "success")), 0)
}

func TestRun_VerificationProblemsDoNotFailTheRun(t *testing.T) {
	t.Parallel()
	master := testNode("nuc2", "10.0.0.1", registry.KindEdge, true)
	h := newHarness(t, master).converged()
	o := h.orchestrator()

	// Listing works while probing, then breaks.
	h.connector.host(master.Name).onFunc("server/node-token", func(string) ssh.Result {
		h.cluster.mu.Lock()
		h.cluster.listErr = errors.New("etcd timeout")
		h.cluster.mu.Unlock()
		return ssh.Result{Stdout: testToken}
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Success)

	final := h.events.last()
	assert.True(t, final.Completed)
	assert.Equal(t, 100, final.Percent)
	assert.Contains(t, final.Message, "checks had issues: etcd timeout")
}

func TestStageError(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := error(&StageError{Stage: "token", Err: cause})

	assert.Equal(t, "token stage failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Workers.Concurrency = 4
	cfg.Token.LocalPath = "/srv/node-token"

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, cfg.Files.Dir, opts.FilesDir)
	assert.Equal(t, 4, opts.Concurrency)
	assert.Equal(t, "/srv/node-token", opts.TokenPath)
	assert.Equal(t, cfg.Monitoring.GrafanaNodePort, opts.Monitoring.GrafanaNodePort)
	assert.Equal(t, cfg.Master.SettleDelay, opts.SettleDelay)
}

func TestGrafanaURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "http://192.168.0.147:32000", GrafanaURL(registry.Node{Address: "192.168.0.147"}, 32000))
}
