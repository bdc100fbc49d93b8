package leasestore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cull-io/cull/internal/replica"
)

func seedAvailable(store *MockStore, rse string, n int) []replica.Ref {
	refs := make([]replica.Ref, 0, n)
	for i := 0; i < n; i++ {
		ref := replica.Ref{Scope: "tests", Name: nameFor(i), RSE: rse}
		store.Seed(replica.Replica{
			Ref:   ref,
			State: replica.StateAvailable,
			Path:  "/data/" + ref.Name,
		})
		refs = append(refs, ref)
	}
	return refs
}

func nameFor(i int) string {
	return fmt.Sprintf("file.%04d", i)
}

func TestClaimBatchMarksRowsBeingDeleted(t *testing.T) {
	store := NewMockStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	refs := seedAvailable(store, "SITE_A", 5)

	batch, err := store.ClaimBatch(context.Background(), "SITE_A", 10, 10*time.Minute)
	require.NoError(t, err)
	assert.Len(t, batch, 5)

	for _, ref := range refs {
		row, ok := store.Row(ref)
		require.True(t, ok)
		assert.Equal(t, replica.StateBeingDeleted, row.State)
		assert.Equal(t, now, row.UpdatedAt)
	}
}

func TestClaimBatchRespectsLimit(t *testing.T) {
	store := NewMockStore()
	seedAvailable(store, "SITE_A", 7)

	batch, err := store.ClaimBatch(context.Background(), "SITE_A", 3, 10*time.Minute)
	require.NoError(t, err)
	assert.Len(t, batch, 3)
}

func TestClaimBatchSkipsHeldLeases(t *testing.T) {
	store := NewMockStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	held := replica.Ref{Scope: "tests", Name: "held", RSE: "SITE_A"}
	expired := replica.Ref{Scope: "tests", Name: "expired", RSE: "SITE_A"}
	store.Seed(
		replica.Replica{Ref: held, State: replica.StateBeingDeleted, UpdatedAt: now.Add(-time.Minute)},
		replica.Replica{Ref: expired, State: replica.StateBeingDeleted, UpdatedAt: now.Add(-11 * time.Minute)},
	)

	batch, err := store.ClaimBatch(context.Background(), "SITE_A", 10, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, expired, batch[0].Ref)
}

func TestClaimBatchEmptyIsNotAnError(t *testing.T) {
	store := NewMockStore()
	batch, err := store.ClaimBatch(context.Background(), "SITE_A", 10, 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestConcurrentClaimsNeverOverlap(t *testing.T) {
	store := NewMockStore()
	seedAvailable(store, "SITE_A", 100)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]replica.Batch, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch, err := store.ClaimBatch(context.Background(), "SITE_A", 25, 10*time.Minute)
			assert.NoError(t, err)
			results[w] = batch
		}(w)
	}
	wg.Wait()

	seen := make(map[replica.Ref]int)
	total := 0
	for _, batch := range results {
		for _, r := range batch {
			seen[r.Ref]++
			total++
		}
	}
	assert.Equal(t, 100, total)
	for ref, count := range seen {
		assert.Equalf(t, 1, count, "replica %s claimed %d times", ref, count)
	}
}

func TestRefreshOnlyTouchesBeingDeleted(t *testing.T) {
	store := NewMockStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	leased := replica.Ref{Scope: "tests", Name: "leased", RSE: "SITE_A"}
	avail := replica.Ref{Scope: "tests", Name: "avail", RSE: "SITE_A"}
	store.Seed(
		replica.Replica{Ref: leased, State: replica.StateBeingDeleted, UpdatedAt: base},
		replica.Replica{Ref: avail, State: replica.StateAvailable, UpdatedAt: base},
	)

	later := base.Add(8 * time.Minute)
	store.Now = func() time.Time { return later }

	touched, err := store.Refresh(context.Background(), "SITE_A", []replica.Ref{leased, avail})
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	ts, err := store.UpdatedAt(context.Background(), leased)
	require.NoError(t, err)
	assert.Equal(t, later, ts)

	ts, err = store.UpdatedAt(context.Background(), avail)
	require.NoError(t, err)
	assert.Equal(t, base, ts)
}

func TestRefreshSkipsRemovedRows(t *testing.T) {
	store := NewMockStore()
	ref := replica.Ref{Scope: "tests", Name: "gone", RSE: "SITE_A"}
	store.Seed(replica.Replica{Ref: ref, State: replica.StateBeingDeleted})

	require.NoError(t, store.RemoveRows(context.Background(), []replica.Ref{ref}))

	touched, err := store.Refresh(context.Background(), "SITE_A", []replica.Ref{ref})
	require.NoError(t, err)
	assert.Zero(t, touched)
}

func TestRemoveRowsDeletesRows(t *testing.T) {
	store := NewMockStore()
	refs := seedAvailable(store, "SITE_A", 3)

	require.NoError(t, store.RemoveRows(context.Background(), refs[:2]))

	_, ok := store.Row(refs[0])
	assert.False(t, ok)
	_, ok = store.Row(refs[2])
	assert.True(t, ok)

	batches := store.RemoveBatches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestClosedStoreFailsOperations(t *testing.T) {
	store := NewMockStore()
	require.NoError(t, store.Close())

	_, err := store.ClaimBatch(context.Background(), "SITE_A", 1, time.Minute)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Refresh(context.Background(), "SITE_A", nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.RemoveRows(context.Background(), nil), ErrStoreClosed)
	_, err = store.UpdatedAt(context.Background(), replica.Ref{})
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestUpdatedAtMissingRow(t *testing.T) {
	store := NewMockStore()
	_, err := store.UpdatedAt(context.Background(), replica.Ref{Name: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}
