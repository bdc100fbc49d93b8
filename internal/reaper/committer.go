package reaper

import (
	"context"
	"fmt"

	"github.com/cull-io/cull/internal/leasestore"
	"github.com/cull-io/cull/internal/metrics"
	"github.com/cull-io/cull/internal/replica"
)

// CommitError reports a failed catalog commit. This is the one failure class
// the core does not absorb: a physically deleted replica still referenced in
// the catalog is a dangling reference, so the caller must see exactly what
// was and was not committed to retry the rest.
type CommitError struct {
	// Committed is the number of rows removed before the failure.
	Committed int
	// Pending is the number of successes still awaiting commit.
	Pending int
	// Err is the underlying store error.
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("reaper: catalog commit failed with %d committed, %d pending: %v",
		e.Committed, e.Pending, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Committer accumulates successfully deleted replicas and removes their rows
// from the catalog. The two variants share this interface:
//
//   - deferred (default): no catalog mutation until the batch ends; Flush
//     returns nothing committed and the full success list stays in Remainder
//     for the caller's own cleanup.
//   - immediate: whenever the pending set reaches the configured batch size,
//     exactly that many rows are deleted; Flush removes the final remainder.
type Committer interface {
	// Add records successes and, in immediate mode, flushes full slices of
	// DBBatchSize rows. Returns the rows committed by this call.
	Add(ctx context.Context, successes ...replica.Replica) (int, error)

	// Flush commits whatever the variant commits at batch end and returns
	// the number of rows it removed.
	Flush(ctx context.Context) (int, error)

	// Committed is the total number of rows removed so far.
	Committed() int

	// CommitSizes lists the catalog delete sizes issued so far, in order.
	CommitSizes() []int

	// Remainder is the ordered list of successes not yet committed.
	Remainder() []replica.Replica
}

// NewCommitter returns the committer variant selected by cfg.
func NewCommitter(store leasestore.LeaseStore, cfg Config, m *metrics.ReaperMetrics) Committer {
	if cfg.EnableImmediateCleanup {
		return &immediateCommitter{store: store, batchSize: cfg.DBBatchSize, metrics: m}
	}
	return &deferredCommitter{}
}

// deferredCommitter collects successes and performs no catalog mutation.
// The reaper's outer loop owns the final catalog delete.
type deferredCommitter struct {
	pending []replica.Replica
}

func (c *deferredCommitter) Add(_ context.Context, successes ...replica.Replica) (int, error) {
	c.pending = append(c.pending, successes...)
	return 0, nil
}

func (c *deferredCommitter) Flush(context.Context) (int, error) { return 0, nil }

func (c *deferredCommitter) Committed() int { return 0 }

func (c *deferredCommitter) CommitSizes() []int { return nil }

func (c *deferredCommitter) Remainder() []replica.Replica {
	out := make([]replica.Replica, len(c.pending))
	copy(out, c.pending)
	return out
}

// immediateCommitter deletes catalog rows in fixed-size slices as successes
// accumulate, spreading catalog load across the batch's wall-clock duration.
type immediateCommitter struct {
	store     leasestore.LeaseStore
	batchSize int
	metrics   *metrics.ReaperMetrics

	pending     []replica.Replica
	committed   int
	commitSizes []int
}

func (c *immediateCommitter) Add(ctx context.Context, successes ...replica.Replica) (int, error) {
	c.pending = append(c.pending, successes...)

	total := 0
	for len(c.pending) >= c.batchSize {
		n, err := c.commit(ctx, c.batchSize)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *immediateCommitter) Flush(ctx context.Context) (int, error) {
	if len(c.pending) == 0 {
		return 0, nil
	}
	return c.commit(ctx, len(c.pending))
}

func (c *immediateCommitter) commit(ctx context.Context, n int) (int, error) {
	slice := c.pending[:n]
	refs := make([]replica.Ref, n)
	for i, r := range slice {
		refs[i] = r.Ref
	}

	if err := c.store.RemoveRows(ctx, refs); err != nil {
		if c.metrics != nil {
			c.metrics.CommitFailures.Inc()
		}
		return 0, &CommitError{Committed: c.committed, Pending: len(c.pending), Err: err}
	}

	c.pending = c.pending[n:]
	c.committed += n
	c.commitSizes = append(c.commitSizes, n)
	if c.metrics != nil {
		c.metrics.RowsCommitted.Add(float64(n))
		c.metrics.CommitBatches.Inc()
		c.metrics.PendingUncommitted.Set(float64(len(c.pending)))
	}
	return n, nil
}

func (c *immediateCommitter) Committed() int { return c.committed }

func (c *immediateCommitter) CommitSizes() []int {
	out := make([]int, len(c.commitSizes))
	copy(out, c.commitSizes)
	return out
}

func (c *immediateCommitter) Remainder() []replica.Replica {
	out := make([]replica.Replica, len(c.pending))
	copy(out, c.pending)
	return out
}
