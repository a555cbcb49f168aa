package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's counters. Construct one per process and pass
// it to the dispatcher and replicator.
type Metrics struct {
	// Transform stage outcomes, labelled by event type and outcome
	// (completed, failed, skipped, mismatched).
	ProcessingTotal *prometheus.CounterVec

	// Event publishing outcomes, labelled by topic and outcome.
	PublishTotal *prometheus.CounterVec

	// Backup runs by final status (SUCCESS, FAILED, SKIPPED).
	BackupRunsTotal *prometheus.CounterVec

	// Backup objects by outcome (copied, failed, pruned).
	BackupObjectsTotal *prometheus.CounterVec

	// Bytes copied to the backup store.
	BackupBytesTotal prometheus.Counter
}

// New creates pipeline metrics registered on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProcessingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_processing_total",
			Help: "Total number of media processing attempts",
		}, []string{"type", "outcome"}),

		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_event_publish_total",
			Help: "Total number of processing event publishes",
		}, []string{"topic", "outcome"}),

		BackupRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backup_runs_total",
			Help: "Total number of backup runs by status",
		}, []string{"status"}),

		BackupObjectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backup_objects_total",
			Help: "Total number of backup object operations",
		}, []string{"outcome"}),

		BackupBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backup_bytes_total",
			Help: "Total bytes copied to the backup store",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ProcessingTotal,
			m.PublishTotal,
			m.BackupRunsTotal,
			m.BackupObjectsTotal,
			m.BackupBytesTotal,
		)
	}
	return m
}

// NewNop creates unregistered metrics for tests and optional wiring.
func NewNop() *Metrics {
	return New(nil)
}
