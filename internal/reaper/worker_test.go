package reaper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cull-io/cull/internal/events"
	"github.com/cull-io/cull/internal/leasestore"
	"github.com/cull-io/cull/internal/replica"
	"github.com/cull-io/cull/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store   *leasestore.MockStore
	deleter *storage.MockDeleter
	clock   *fakeClock
	rec     *events.Recorder
	worker  *Worker
	cfg     Config
}

func newFixture(cfg Config) *fixture {
	clock := newFakeClock()
	store := leasestore.NewMockStore()
	store.Now = clock.Now
	deleter := storage.NewMockDeleter()
	rec := &events.Recorder{}

	w := NewWorker(WorkerOptions{
		Store:     store,
		Deleter:   deleter,
		Refresher: NewRefresher(store, nil, rec, nil),
		Config:    cfg,
		WorkerID:  "worker-test",
		Emitter:   rec,
	})
	w.now = clock.Now

	return &fixture{store: store, deleter: deleter, clock: clock, rec: rec, worker: w, cfg: cfg}
}

// claim seeds n available replicas and claims them through the selector so
// the batch carries real leases.
func (f *fixture) claim(t *testing.T, n int) replica.Batch {
	t.Helper()
	seedAvailable(f.store, "SITE_A", n)
	cfg := f.cfg
	cfg.ChunkSize = n
	batch, err := NewSelector(f.store).Select(context.Background(), "SITE_A", cfg)
	require.NoError(t, err)
	require.Len(t, batch, n)
	return batch
}

func TestProcessEmptyBatch(t *testing.T) {
	f := newFixture(DefaultConfig())
	res, err := f.worker.Process(context.Background(), "SITE_A", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, f.rec.Events)
}

func TestProcessDeletesInBatchOrder(t *testing.T) {
	f := newFixture(DefaultConfig())
	batch := f.claim(t, 30)

	res, err := f.worker.Process(context.Background(), "SITE_A", batch)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Succeeded)
	assert.Zero(t, res.Failed)

	deleted := f.deleter.Deleted()
	require.Len(t, deleted, 30)
	for i, ref := range deleted {
		assert.Equal(t, batch[i].Ref, ref)
	}
}

func TestProcessSingleFailureDoesNotAbort(t *testing.T) {
	f := newFixture(DefaultConfig())
	batch := f.claim(t, 10)
	bad := batch[4]
	f.deleter.FailWith(bad.Ref, errors.New("endpoint timeout"))

	res, err := f.worker.Process(context.Background(), "SITE_A", batch)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Outcomes, 10)

	// Not retried within the batch.
	assert.Len(t, f.deleter.Deleted(), 9)

	// Still leased for natural expiry retry.
	row, ok := f.store.Row(bad.Ref)
	require.True(t, ok)
	assert.Equal(t, replica.StateBeingDeleted, row.State)

	// Excluded from the success remainder.
	for _, r := range res.Remainder {
		assert.NotEqual(t, bad.Ref, r.Ref)
	}

	failedEvents := f.rec.ByType(events.TypeDeletionFailed)
	require.Len(t, failedEvents, 1)
	assert.Equal(t, bad.Ref.Name, failedEvents[0].Name)
}

func TestProcessTreatsMissingReplicaAsDeleted(t *testing.T) {
	f := newFixture(DefaultConfig())
	batch := f.claim(t, 3)
	f.deleter.FailWith(batch[1].Ref, storage.ErrNotFound)

	res, err := f.worker.Process(context.Background(), "SITE_A", batch)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Len(t, res.Remainder, 3)
}

func TestProcessEmitsBatchLifecycleEvents(t *testing.T) {
	f := newFixture(DefaultConfig())
	batch := f.claim(t, 5)

	_, err := f.worker.Process(context.Background(), "SITE_A", batch)
	require.NoError(t, err)

	started := f.rec.ByType(events.TypeBatchStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "SITE_A", started[0].RSE)
	assert.Equal(t, "deferred", started[0].Mode)
	assert.Equal(t, 5, started[0].BatchSize)

	completed := f.rec.ByType(events.TypeBatchCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 5, completed[0].Processed)
	assert.Equal(t, 5, completed[0].Remainder)
	assert.Zero(t, completed[0].Committed)

	assert.Len(t, f.rec.ByType(events.TypeDeletionDone), 5)
}

func TestProcessCommitFailureSurfacesCounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableImmediateCleanup = true
	cfg.DBBatchSize = 10
	f := newFixture(cfg)
	batch := f.claim(t, 25)
	f.store.FailRemove = true

	res, err := f.worker.Process(context.Background(), "SITE_A", batch)
	require.Error(t, err)

	var commitErr *CommitError
	require.True(t, errors.As(err, &commitErr))
	assert.Zero(t, commitErr.Committed)
	assert.Equal(t, 10, commitErr.Pending)

	// Processing stopped at the failed flush: the first 10 successes are
	// recorded, the rest of the batch was not attempted.
	assert.Equal(t, 10, res.Succeeded)
	assert.Len(t, res.Remainder, 10)
	assert.Zero(t, res.Committed)
}

func TestProcessRefreshFiresAfterTriggerWithReset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 15
	f := newFixture(cfg)
	batch := f.claim(t, 150)

	// Cross the 480s trigger during the seventh sub-chunk, while 45
	// replicas are still outstanding.
	f.deleter.OnDelete = func(i int) {
		if i == 104 {
			f.clock.Advance(481 * time.Second)
		}
	}

	res, err := f.worker.Process(context.Background(), "SITE_A", batch)
	require.NoError(t, err)
	assert.Equal(t, 150, res.Succeeded)
	assert.Equal(t, 1, res.Refreshes, "trigger crossed once, refresh fires once")
	assert.Equal(t, 1, f.store.RefreshCalls())

	triggered := f.rec.ByType(events.TypeRefreshTriggered)
	require.Len(t, triggered, 1)
	assert.Equal(t, 45, triggered[0].Outstanding)
}

func TestProcessNoRefreshOnFastBatch(t *testing.T) {
	f := newFixture(DefaultConfig())
	batch := f.claim(t, 150)

	res, err := f.worker.Process(context.Background(), "SITE_A", batch)
	require.NoError(t, err)
	assert.Zero(t, res.Refreshes)
	assert.Zero(t, f.store.RefreshCalls())
}
