// Package metrics collects and exposes the ambient Prometheus metrics
// for the coordinator (§2.2 domain stack): submission throughput, task
// outcomes by kind and terminal state, worker reservation latency, and
// recovery-loop claims. A full observability layer is out of scope (the
// spec's non-goals), but these counters/gauges/histograms are carried
// forward regardless, adapted from the teacher's Collector to this
// domain's event names.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zkstage/coordinator/pkg/types"
)

// Collector collects Prometheus metrics for one coordinator process.
type Collector struct {
	submissionsStarted  prometheus.Counter
	submissionsFinished *prometheus.CounterVec // labeled by terminal status

	taskEvents *prometheus.CounterVec // labeled by kind, terminal state

	reservationLatency prometheus.Histogram
	recoveryClaims     prometheus.Counter

	submissionsComputing prometheus.Gauge
}

// NewCollector creates a new metrics collector and registers it against
// the default registerer.
func NewCollector() *Collector {
	c := &Collector{
		submissionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zkstage_submissions_started_total",
			Help: "Total number of submissions accepted by the submission API",
		}),
		submissionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zkstage_submissions_finished_total",
			Help: "Total number of submissions reaching a terminal status",
		}, []string{"status"}),
		taskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zkstage_task_events_total",
			Help: "Total number of task events absorbed by the dispatcher",
		}, []string{"kind", "state"}),
		reservationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zkstage_worker_reservation_latency_seconds",
			Help:    "Latency of worker-pool Reserve calls",
			Buckets: prometheus.DefBuckets,
		}),
		recoveryClaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zkstage_recovery_claims_total",
			Help: "Total number of submissions claimed by the recovery loop",
		}),
		submissionsComputing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zkstage_submissions_computing",
			Help: "Current number of submissions in the Computing status",
		}),
	}

	prometheus.MustRegister(c.submissionsStarted)
	prometheus.MustRegister(c.submissionsFinished)
	prometheus.MustRegister(c.taskEvents)
	prometheus.MustRegister(c.reservationLatency)
	prometheus.MustRegister(c.recoveryClaims)
	prometheus.MustRegister(c.submissionsComputing)

	return c
}

// RecordSubmissionStarted records a newly accepted submission.
func (c *Collector) RecordSubmissionStarted() {
	c.submissionsStarted.Inc()
}

// RecordSubmissionFinished records a submission reaching a terminal status.
func (c *Collector) RecordSubmissionFinished(status types.SubmissionStatus) {
	c.submissionsFinished.WithLabelValues(string(status)).Inc()
}

// RecordTaskEvent records one absorbed task event by kind and resulting state.
func (c *Collector) RecordTaskEvent(kind types.TaskKind, state types.TaskState) {
	c.taskEvents.WithLabelValues(string(kind), state.String()).Inc()
}

// ObserveReservationLatency records how long a worker-pool Reserve call took.
func (c *Collector) ObserveReservationLatency(seconds float64) {
	c.reservationLatency.Observe(seconds)
}

// RecordRecoveryClaim records the recovery loop claiming a stale submission.
func (c *Collector) RecordRecoveryClaim() {
	c.recoveryClaims.Inc()
}

// SetSubmissionsComputing sets the current Computing-status gauge.
func (c *Collector) SetSubmissionsComputing(n int) {
	c.submissionsComputing.Set(float64(n))
}

// StartServer starts the Prometheus metrics HTTP server at addr (e.g.
// "0.0.0.0:50010"), blocking until it exits.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
