package orchestration

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/edgefleet/internal/platform/ssh"
	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/registry"
)

var _ = Describe("Deploy pipeline", func() {
	var (
		master registry.Node
		edge   registry.Node
		pi     registry.Node
	)

	BeforeEach(func() {
		master = testNode("nuc2", "192.168.0.147", registry.KindEdge, true)
		edge = testNode("edge-1", "192.168.0.150", registry.KindEdge, false)
		pi = testNode("pi-1", "192.168.0.160", registry.KindConstrained, false)
	})

	expectMonotonic := func(events []progress.Event) {
		GinkgoHelper()
		last := 0
		for _, e := range events {
			Expect(e.Percent).To(BeNumerically(">=", last), "percent went backwards at %q", e.Message)
			last = e.Percent
		}
	}

	Context("on a fresh fleet", func() {
		It("installs the master, joins every worker and applies the workloads", func() {
			h := newHarness(GinkgoT(), master, edge, pi)

			summary, err := h.orchestrator().Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())

			Expect(summary.Success).To(BeTrue())
			Expect(summary.Message).To(ContainSubstring("http://192.168.0.147:32000"))
			Expect(summary.Details).To(Equal(Details{
				MasterSetup:            MasterSetupCompleted,
				WorkersJoined:          2,
				NewNodesAdded:          2,
				ManifestsApplied:       4,
				ConfigResourcesCreated: 1,
			}))

			masterHost := h.connector.host(master.Name)
			Expect(masterHost.ran("sudo /home/pi/install-k3s.sh")).To(BeTrue())
			Expect(masterHost.uploads).To(HaveKey("/home/pi/install-k3s.sh"))
			Expect(masterHost.uploads).To(HaveKey("/home/pi/q_learning_model.pkl"))

			Expect(h.charts.specs).To(HaveLen(1))
			Expect(h.charts.specs[0].Chart).To(Equal("kube-prometheus-stack"))
			Expect(h.cluster.called("env prometheus-operator-grafana")).To(BeTrue())
			Expect(h.cluster.called("nodeport prometheus-operator-grafana")).To(BeTrue())

			Expect(h.connector.host(edge.Name).ran("--node-label role=edge")).To(BeTrue())
			Expect(h.connector.host(pi.Name).ran("--node-label role=iot")).To(BeTrue())
			Expect(h.connector.host(pi.Name).ran("get.docker.com")).To(BeTrue())

			Expect(h.cluster.applied).To(Equal(ManifestOrder))
			Expect(h.cluster.deleted).To(Equal([]string{FileMyApp}))

			events := h.events.all()
			expectMonotonic(events)
			final := h.events.last()
			Expect(final.Kind).To(Equal(progress.KindProgress))
			Expect(final.Percent).To(Equal(100))
			Expect(final.Completed).To(BeTrue())
			Expect(final.ActiveStep).To(Equal(progress.StepComplete))
			Expect(final.Message).To(ContainSubstring("Cluster has 3 nodes"))
		})

		It("is idempotent on a second run", func() {
			h := newHarness(GinkgoT(), master, edge, pi)
			h.connector.host(master.Name).present("systemctl is-active")
			o := h.orchestrator()

			_, err := o.Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())
			installs := h.connector.host(master.Name).count("install-k3s.sh")
			joins := h.connector.host(edge.Name).count("K3S_TOKEN")

			second, err := o.Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Details.MasterSetup).To(Equal(MasterSetupSkipped))
			Expect(second.Details.NewNodesAdded).To(Equal(0))
			Expect(second.Details.WorkersJoined).To(Equal(2))

			Expect(h.connector.host(master.Name).count("install-k3s.sh")).To(Equal(installs))
			Expect(h.connector.host(edge.Name).count("K3S_TOKEN")).To(Equal(joins))
		})
	})

	Context("with the master already converged", func() {
		It("skips the install and only joins missing workers", func() {
			h := newHarness(GinkgoT(), master, edge, pi).converged(edge.Name)

			summary, err := h.orchestrator().Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Details.MasterSetup).To(Equal(MasterSetupSkipped))
			Expect(summary.Details.NewNodesAdded).To(Equal(1))
			Expect(summary.Details.WorkersJoined).To(Equal(2))

			Expect(h.connector.host(master.Name).ran("install-k3s.sh")).To(BeFalse())
			Expect(h.charts.specs).To(BeEmpty())
			Expect(h.connector.dials).NotTo(ContainElement(edge.Name))
			Expect(h.events.messages()).To(ContainElement("Master node already setup, skipping installation..."))
		})

		It("joins both workers when only the master is live", func() {
			h := newHarness(GinkgoT(), master, edge, pi).converged()

			summary, err := h.orchestrator().Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Success).To(BeTrue())
			Expect(summary.Details.MasterSetup).To(Equal(MasterSetupSkipped))
			Expect(summary.Details.NewNodesAdded).To(Equal(2))
			Expect(summary.Details.WorkersJoined).To(Equal(2))

			Expect(h.connector.host(master.Name).ran("install-k3s.sh")).To(BeFalse())
			Expect(h.connector.host(master.Name).ran("server/node-token")).To(BeTrue())
			Expect(h.connector.host(edge.Name).ran("K3S_TOKEN")).To(BeTrue())
			Expect(h.connector.host(pi.Name).ran("K3S_TOKEN")).To(BeTrue())
			Expect(h.events.messages()).To(ContainElement("Master node already setup, skipping installation..."))
		})

		It("keeps progress ordered when workers join in parallel", func() {
			pi2 := testNode("pi-2", "192.168.0.161", registry.KindConstrained, false)
			h := newHarness(GinkgoT(), master, edge, pi, pi2).converged()
			h.opts.Concurrency = 3

			summary, err := h.orchestrator().Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Details.NewNodesAdded).To(Equal(3))
			expectMonotonic(h.events.all())
		})

		It("touches no worker when the whole fleet is present", func() {
			h := newHarness(GinkgoT(), master, edge, pi).converged(edge.Name, pi.Name)

			summary, err := h.orchestrator().Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Details.NewNodesAdded).To(Equal(0))
			Expect(summary.Details.WorkersJoined).To(Equal(2))
			Expect(h.connector.dials).To(Equal([]string{master.Name}))
			Expect(h.events.messages()).To(ContainElement("All nodes already joined cluster, skipping node joining"))
		})
	})

	Context("when one worker fails", func() {
		It("joins the others and still succeeds", func() {
			pi2 := testNode("pi-2", "192.168.0.161", registry.KindConstrained, false)
			h := newHarness(GinkgoT(), master, edge, pi, pi2)
			h.connector.fail[pi.Name] = errors.New("connection refused")
			h.connector.host(edge.Name).on("K3S_TOKEN", ssh.Result{ExitCode: 1, Stderr: "join refused"})

			summary, err := h.orchestrator().Run(suiteCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Success).To(BeTrue())
			Expect(summary.Details.NewNodesAdded).To(Equal(1))
			Expect(summary.Details.WorkersJoined).To(Equal(1))
			Expect(h.connector.host(pi2.Name).ran("K3S_TOKEN")).To(BeTrue())
			Expect(h.events.last().Kind).To(Equal(progress.KindProgress))
		})
	})

	Context("when a stage fails fatally", func() {
		expectStageError := func(err error, stage string) {
			GinkgoHelper()
			var stageErr *StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(stage))
		}

		It("rejects a bundle with missing files before contacting any node", func() {
			h := newHarness(GinkgoT(), master, edge)
			h.bundle = writeBundle(GinkgoT(), FileDetect)
			h.opts.FilesDir = h.bundle.Dir

			_, err := h.orchestrator().Run(suiteCtx)
			expectStageError(err, "validate")
			Expect(errors.Is(err, ErrMissingFiles)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(FileDetect))
			Expect(h.connector.dials).To(BeEmpty())

			final := h.events.last()
			Expect(final.Kind).To(Equal(progress.KindError))
			Expect(final.Completed).To(BeTrue())
		})

		It("fails without a master", func() {
			h := newHarness(GinkgoT(), edge, pi)

			_, err := h.orchestrator().Run(suiteCtx)
			expectStageError(err, "resolve-master")
			Expect(errors.Is(err, ErrNoMaster)).To(BeTrue())
		})

		It("aborts when the install script fails", func() {
			h := newHarness(GinkgoT(), master, edge)
			h.connector.host(master.Name).on(defaultInstallScript, ssh.Result{ExitCode: 1, Stderr: "no space left"})

			_, err := h.orchestrator().Run(suiteCtx)
			expectStageError(err, "master")
			Expect(err.Error()).To(ContainSubstring("no space left"))
			Expect(h.connector.dials).NotTo(ContainElement(edge.Name))
			Expect(h.events.last().Kind).To(Equal(progress.KindError))
			expectMonotonic(h.events.all())
		})

		It("aborts when no join token can be found", func() {
			h := newHarness(GinkgoT(), master, edge)
			h.connector.host(master.Name).on("server/node-token", ssh.Result{ExitCode: 1, Stderr: "permission denied"})

			_, err := h.orchestrator().Run(suiteCtx)
			expectStageError(err, "token")
			Expect(errors.Is(err, ErrNoToken)).To(BeTrue())
		})
	})
})
