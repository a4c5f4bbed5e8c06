package orchestration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/edgefleet/internal/registry"
)

const metricsNamespace = "edgefleet"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	joinsTotal      *prometheus.CounterVec
	manifestsTotal  *prometheus.CounterVec
	subscriberGauge prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of deploy runs by result",
			},
			[]string{"result"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of deploy runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
		),
		joinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "node_joins_total",
				Help:      "Total number of worker join attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
		manifestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "manifests_applied_total",
				Help:      "Total number of manifest applications by result",
			},
			[]string{"result"},
		),
		subscriberGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "progress_subscribers",
				Help:      "Number of currently subscribed progress observers",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.runsTotal, m.runDuration, m.joinsTotal, m.manifestsTotal, m.subscriberGauge)
	}
	return m
}

// SubscriberGauge returns the gauge tracking progress observers.
func (m *Metrics) SubscriberGauge() prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.subscriberGauge
}

func (m *Metrics) observeRun(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(result(err)).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) observeJoin(kind registry.Kind, err error) {
	if m == nil {
		return
	}
	m.joinsTotal.WithLabelValues(string(kind), result(err)).Inc()
}

func (m *Metrics) observeManifest(err error) {
	if m == nil {
		return
	}
	m.manifestsTotal.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
