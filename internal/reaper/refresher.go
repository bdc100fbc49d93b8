package reaper

import (
	"context"
	"time"

	"github.com/cull-io/cull/internal/events"
	"github.com/cull-io/cull/internal/leasestore"
	"github.com/cull-io/cull/internal/logging"
	"github.com/cull-io/cull/internal/metrics"
	"github.com/cull-io/cull/internal/replica"
)

// Refresher extends deletion leases on replicas a worker is still processing,
// so other workers do not reclaim them mid-flight. Refreshing is optimistic:
// only rows still in BEING_DELETED are restamped, and a failed refresh merely
// raises the takeover risk for the rest of the batch. It never aborts
// processing.
type Refresher struct {
	store   leasestore.LeaseStore
	log     *logging.Logger
	emitter events.Emitter
	metrics *metrics.ReaperMetrics
}

// NewRefresher creates a Refresher. Logger and emitter may be nil.
func NewRefresher(store leasestore.LeaseStore, log *logging.Logger, emitter events.Emitter, m *metrics.ReaperMetrics) *Refresher {
	if log == nil {
		log = logging.Default()
	}
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Refresher{store: store, log: log, emitter: emitter, metrics: m}
}

// MaybeRefresh restamps the outstanding leases if the batch has consumed more
// than the trigger fraction of the lease. Reports whether a refresh was
// issued and succeeded. Idempotent: re-running with the same outstanding set
// only moves the timestamps forward again.
func (r *Refresher) MaybeRefresh(ctx context.Context, rseID string, elapsed time.Duration, outstanding []replica.Ref, cfg Config) bool {
	if elapsed <= cfg.TriggerTime() || len(outstanding) == 0 {
		return false
	}

	touched, err := r.store.Refresh(ctx, rseID, outstanding)
	if err != nil {
		// Absorbed: the worker keeps going with a shorter lease runway.
		r.log.Warnf("lease refresh failed", map[string]any{
			"rse":         rseID,
			"elapsedMs":   elapsed.Milliseconds(),
			"outstanding": len(outstanding),
			"error":       err.Error(),
		})
		r.emitter.Emit(ctx, events.Event{
			Type:        events.TypeRefreshFailed,
			Timestamp:   time.Now().UTC(),
			RSE:         rseID,
			ElapsedMs:   elapsed.Milliseconds(),
			Outstanding: len(outstanding),
			Error:       err.Error(),
		})
		if r.metrics != nil {
			r.metrics.RefreshFailures.Inc()
		}
		return false
	}

	r.log.Infof("lease refresh fired", map[string]any{
		"rse":         rseID,
		"elapsedMs":   elapsed.Milliseconds(),
		"outstanding": len(outstanding),
		"touched":     touched,
	})
	r.emitter.Emit(ctx, events.Event{
		Type:        events.TypeRefreshTriggered,
		Timestamp:   time.Now().UTC(),
		RSE:         rseID,
		ElapsedMs:   elapsed.Milliseconds(),
		Outstanding: len(outstanding),
	})
	if r.metrics != nil {
		r.metrics.LeaseRefreshes.Inc()
	}
	return true
}
