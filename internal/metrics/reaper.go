// Package metrics defines Prometheus metrics for the reaper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReaperMetrics holds metrics for batch processing, lease refreshes, and
// catalog commits.
type ReaperMetrics struct {
	// ReplicasDeleted counts successful physical deletions.
	ReplicasDeleted prometheus.Counter

	// DeletionFailures counts failed physical deletions. Failed replicas
	// stay leased until expiry and are retried in a later batch.
	DeletionFailures prometheus.Counter

	// LeaseRefreshes counts refresh calls that fired.
	LeaseRefreshes prometheus.Counter

	// RefreshFailures counts refresh calls that failed at the lease store.
	RefreshFailures prometheus.Counter

	// RowsCommitted counts catalog rows removed after successful deletion.
	RowsCommitted prometheus.Counter

	// CommitBatches counts catalog delete statements issued.
	CommitBatches prometheus.Counter

	// CommitFailures counts catalog deletes that failed. These surface to
	// the caller; a physically deleted replica still referenced in the
	// catalog is a dangling reference.
	CommitFailures prometheus.Counter

	// LastBatchSize tracks the size of the most recent selector batch.
	LastBatchSize prometheus.Gauge

	// PendingUncommitted tracks successes awaiting catalog commit.
	PendingUncommitted prometheus.Gauge
}

// NewReaperMetrics creates and registers reaper metrics.
// Uses promauto for automatic registration with the default registry.
func NewReaperMetrics() *ReaperMetrics {
	return newReaperMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewReaperMetricsWithRegistry creates reaper metrics registered with a
// custom registry. Useful for testing to avoid conflicts with the default
// registry.
func NewReaperMetricsWithRegistry(reg prometheus.Registerer) *ReaperMetrics {
	return newReaperMetrics(promauto.With(reg))
}

func newReaperMetrics(factory promauto.Factory) *ReaperMetrics {
	return &ReaperMetrics{
		ReplicasDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "replicas_deleted_total",
			Help:      "Number of replicas physically deleted.",
		}),
		DeletionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "deletion_failures_total",
			Help:      "Number of physical deletions that failed.",
		}),
		LeaseRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "lease_refreshes_total",
			Help:      "Number of lease refresh calls that fired.",
		}),
		RefreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "refresh_failures_total",
			Help:      "Number of lease refresh calls that failed at the store.",
		}),
		RowsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "rows_committed_total",
			Help:      "Number of catalog rows removed after successful deletion.",
		}),
		CommitBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "commit_batches_total",
			Help:      "Number of catalog delete statements issued.",
		}),
		CommitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "commit_failures_total",
			Help:      "Number of catalog deletes that failed and surfaced to the caller.",
		}),
		LastBatchSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "last_batch_size",
			Help:      "Size of the most recent selector batch.",
		}),
		PendingUncommitted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cull",
			Subsystem: "reaper",
			Name:      "pending_uncommitted",
			Help:      "Successful deletions awaiting catalog commit.",
		}),
	}
}
