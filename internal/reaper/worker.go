package reaper

import (
	"context"
	"errors"
	"time"

	"github.com/cull-io/cull/internal/events"
	"github.com/cull-io/cull/internal/leasestore"
	"github.com/cull-io/cull/internal/logging"
	"github.com/cull-io/cull/internal/metrics"
	"github.com/cull-io/cull/internal/replica"
	"github.com/cull-io/cull/internal/storage"
)

// Result summarizes one processed batch.
type Result struct {
	// Outcomes holds the per-replica results in batch order.
	Outcomes []replica.Outcome

	// Succeeded and Failed count physical deletion results.
	Succeeded int
	Failed    int

	// Committed is the number of catalog rows removed during processing
	// (always zero in deferred mode).
	Committed int

	// CommitSizes lists the catalog delete sizes issued, in order.
	CommitSizes []int

	// Remainder holds successes whose catalog rows were not removed. In
	// deferred mode this is every success; the caller owns their cleanup.
	Remainder []replica.Replica

	// Refreshes counts lease refreshes that fired during the batch.
	Refreshes int
}

// Worker drives physical deletion of selector batches. One worker processes
// one batch at a time; deletions run sequentially in sub-chunks of
// cfg.ChunkSize, and the refresher is consulted between sub-chunks.
type Worker struct {
	store     leasestore.LeaseStore
	deleter   storage.Deleter
	refresher *Refresher
	cfg       Config
	workerID  string

	log     *logging.Logger
	emitter events.Emitter
	metrics *metrics.ReaperMetrics

	// now is the batch clock; replaced in tests.
	now func() time.Time
}

// WorkerOptions configures a Worker. Store, Deleter, and Refresher are
// required; the rest may be zero.
type WorkerOptions struct {
	Store     leasestore.LeaseStore
	Deleter   storage.Deleter
	Refresher *Refresher
	Config    Config
	WorkerID  string
	Logger    *logging.Logger
	Emitter   events.Emitter
	Metrics   *metrics.ReaperMetrics
}

// NewWorker creates a Worker.
func NewWorker(opts WorkerOptions) *Worker {
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Worker{
		store:     opts.Store,
		deleter:   opts.Deleter,
		refresher: opts.Refresher,
		cfg:       opts.Config.Normalize(),
		workerID:  opts.WorkerID,
		log:       log,
		emitter:   emitter,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
}

// Process deletes every replica in the batch and commits successes per the
// configured mode. A single replica's deletion failure is recorded and the
// batch continues; the failed replica keeps its lease and becomes claimable
// again once it expires. Only a catalog commit failure aborts the batch, and
// then the returned Result still carries exact counts for the caller's retry.
func (w *Worker) Process(ctx context.Context, rseID string, batch replica.Batch) (Result, error) {
	res := Result{}
	if len(batch) == 0 {
		return res, nil
	}

	start := w.now()
	committer := NewCommitter(w.store, w.cfg, w.metrics)

	w.log.Infof("batch started", map[string]any{
		"rse":        rseID,
		"mode":       w.cfg.Mode(),
		"batchSize":  len(batch),
		"chunkSize":  w.cfg.ChunkSize,
		"delayS":     int(w.cfg.Delay.Seconds()),
		"triggerPct": w.cfg.RefreshTriggerRatio,
	})
	w.emitter.Emit(ctx, events.Event{
		Type:      events.TypeBatchStarted,
		Timestamp: w.now().UTC(),
		WorkerID:  w.workerID,
		RSE:       rseID,
		Mode:      w.cfg.Mode(),
		BatchSize: len(batch),
	})
	if w.metrics != nil {
		w.metrics.LastBatchSize.Set(float64(len(batch)))
	}

	succeeded := make(map[replica.Ref]bool, len(batch))

	for chunkStart := 0; chunkStart < len(batch); chunkStart += w.cfg.ChunkSize {
		chunkEnd := chunkStart + w.cfg.ChunkSize
		if chunkEnd > len(batch) {
			chunkEnd = len(batch)
		}

		for _, r := range batch[chunkStart:chunkEnd] {
			err := w.deleter.Delete(ctx, r)
			if errors.Is(err, storage.ErrNotFound) {
				// Already gone; the catalog row is still ours to remove.
				err = nil
			}

			res.Outcomes = append(res.Outcomes, replica.Outcome{Ref: r.Ref, Err: err})
			if err != nil {
				res.Failed++
				w.log.Warnf("replica deletion failed", map[string]any{
					"replica": r.Ref.String(),
					"error":   err.Error(),
				})
				w.emitter.Emit(ctx, events.DeletionFailed(w.workerID, r, err))
				if w.metrics != nil {
					w.metrics.DeletionFailures.Inc()
				}
				continue
			}

			res.Succeeded++
			succeeded[r.Ref] = true
			w.emitter.Emit(ctx, events.DeletionDone(w.workerID, r))
			if w.metrics != nil {
				w.metrics.ReplicasDeleted.Inc()
			}

			n, err := committer.Add(ctx, r)
			res.Committed += n
			if err != nil {
				res.CommitSizes = committer.CommitSizes()
				res.Remainder = committer.Remainder()
				return res, err
			}
		}

		elapsed := w.now().Sub(start)
		outstanding := outstandingRefs(batch, succeeded)
		if w.refresher.MaybeRefresh(ctx, rseID, elapsed, outstanding, w.cfg) {
			res.Refreshes++
			// The leases were just restamped, so the takeover clock
			// restarted; measure the next trigger from here.
			start = w.now()
		}
	}

	n, err := committer.Flush(ctx)
	res.Committed += n
	res.CommitSizes = committer.CommitSizes()
	res.Remainder = committer.Remainder()
	if err != nil {
		return res, err
	}

	w.log.Infof("batch completed", map[string]any{
		"rse":       rseID,
		"processed": len(res.Outcomes),
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"committed": res.Committed,
		"remainder": len(res.Remainder),
	})
	w.emitter.Emit(ctx, events.Event{
		Type:      events.TypeBatchCompleted,
		Timestamp: w.now().UTC(),
		WorkerID:  w.workerID,
		RSE:       rseID,
		Mode:      w.cfg.Mode(),
		Processed: len(res.Outcomes),
		Committed: res.Committed,
		Remainder: len(res.Remainder),
		Failures:  res.Failed,
	})
	return res, nil
}

// outstandingRefs returns the batch refs not yet successfully deleted:
// everything unprocessed plus everything that failed. Failed replicas keep
// their lease until expiry, so restamping them only delays their retry by
// one refresh interval.
func outstandingRefs(batch replica.Batch, succeeded map[replica.Ref]bool) []replica.Ref {
	var out []replica.Ref
	for _, r := range batch {
		if !succeeded[r.Ref] {
			out = append(out, r.Ref)
		}
	}
	return out
}
