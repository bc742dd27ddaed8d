// Package metrics exposes Prometheus instrumentation for the drive
// engine: mutation outcomes, rebuilds, and the inconsistency events that
// multi-step non-transactional sequences can leave behind.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors registered for the daemon.
type Metrics struct {
	mutations       *prometheus.CounterVec
	rebuilds        prometheus.Counter
	rebuildFailures prometheus.Counter
	inconsistencies *prometheus.CounterVec
	uploadedBytes   prometheus.Counter
}

// New registers all collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filedrive_mutations_total",
			Help: "Remote mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		rebuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "filedrive_map_rebuilds_total",
			Help: "Successful unified map rebuilds.",
		}),
		rebuildFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "filedrive_map_rebuild_failures_total",
			Help: "Failed unified map rebuilds.",
		}),
		inconsistencies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filedrive_inconsistencies_total",
			Help: "Detected partial-failure inconsistencies by kind (orphaned_record, file_lost).",
		}, []string{"kind"}),
		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "filedrive_uploaded_bytes_total",
			Help: "Raw bytes uploaded through the orchestrator.",
		}),
	}
}

// MutationOK records a successful mutation.
func (m *Metrics) MutationOK(op string) {
	m.mutations.WithLabelValues(op, "ok").Inc()
}

// MutationFailed records a failed mutation.
func (m *Metrics) MutationFailed(op string) {
	m.mutations.WithLabelValues(op, "error").Inc()
}

// Rebuild records a successful unified map rebuild.
func (m *Metrics) Rebuild() {
	m.rebuilds.Inc()
}

// RebuildFailed records a failed rebuild.
func (m *Metrics) RebuildFailed() {
	m.rebuildFailures.Inc()
}

// Inconsistency records a detected inconsistency of the given kind.
func (m *Metrics) Inconsistency(kind string) {
	m.inconsistencies.WithLabelValues(kind).Inc()
}

// UploadedBytes adds to the uploaded byte counter.
func (m *Metrics) UploadedBytes(n int) {
	m.uploadedBytes.Add(float64(n))
}
