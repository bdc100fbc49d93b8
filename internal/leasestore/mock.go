package leasestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cull-io/cull/internal/replica"
)

// MockStore implements LeaseStore in memory for testing.
// It is exported so that tests in other packages can use it.
//
// Claim, refresh, and removal semantics mirror the SQL store: claims are
// atomic under the store mutex, refresh only touches rows still in
// BEING_DELETED, and removal wins over a concurrent refresh.
type MockStore struct {
	mu     sync.Mutex
	rows   map[replica.Ref]replica.Replica
	closed bool

	// Now is the clock used for lease stamps. Tests may replace it.
	Now func() time.Time

	// FailRefresh makes Refresh return ErrInjected when set.
	FailRefresh bool

	// FailRemove makes RemoveRows return ErrInjected when set.
	FailRemove bool

	claimCalls    int
	refreshCalls  int
	removeBatches [][]replica.Ref
}

// ErrInjected is returned by mock operations with failure injection enabled.
var ErrInjected = errInjected{}

type errInjected struct{}

func (errInjected) Error() string { return "leasestore: injected failure" }

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		rows: make(map[replica.Ref]replica.Replica),
		Now:  time.Now,
	}
}

// Seed inserts or replaces rows.
func (m *MockStore) Seed(rows ...replica.Replica) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.rows[r.Ref] = r
	}
}

// Row returns a copy of one row and whether it exists.
func (m *MockStore) Row(ref replica.Ref) (replica.Replica, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[ref]
	return r, ok
}

// Close marks the store closed; subsequent operations fail with ErrStoreClosed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockStore) ClaimBatch(_ context.Context, rseID string, limit int, delay time.Duration) (replica.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	m.claimCalls++

	now := m.Now()

	// Deterministic candidate order for tests: sort by scope, name.
	var candidates []replica.Ref
	for ref, row := range m.rows {
		if ref.RSE != rseID {
			continue
		}
		eligible := row.State == replica.StateAvailable ||
			(row.State == replica.StateBeingDeleted && now.Sub(row.UpdatedAt) > delay)
		if eligible {
			candidates = append(candidates, ref)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Scope != candidates[j].Scope {
			return candidates[i].Scope < candidates[j].Scope
		}
		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	batch := make(replica.Batch, 0, len(candidates))
	for _, ref := range candidates {
		row := m.rows[ref]
		row.State = replica.StateBeingDeleted
		row.UpdatedAt = now
		m.rows[ref] = row
		batch = append(batch, row)
	}
	return batch, nil
}

func (m *MockStore) Refresh(_ context.Context, rseID string, refs []replica.Ref) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	m.refreshCalls++
	if m.FailRefresh {
		return 0, ErrInjected
	}

	now := m.Now()
	touched := 0
	for _, ref := range refs {
		if ref.RSE != rseID {
			continue
		}
		row, ok := m.rows[ref]
		if !ok || row.State != replica.StateBeingDeleted {
			continue
		}
		row.UpdatedAt = now
		m.rows[ref] = row
		touched++
	}
	return touched, nil
}

func (m *MockStore) RemoveRows(_ context.Context, refs []replica.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.FailRemove {
		return ErrInjected
	}

	batch := make([]replica.Ref, len(refs))
	copy(batch, refs)
	m.removeBatches = append(m.removeBatches, batch)

	for _, ref := range refs {
		delete(m.rows, ref)
	}
	return nil
}

func (m *MockStore) UpdatedAt(_ context.Context, ref replica.Ref) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return time.Time{}, ErrStoreClosed
	}
	row, ok := m.rows[ref]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return row.UpdatedAt, nil
}

// ClaimCalls returns the number of ClaimBatch invocations.
func (m *MockStore) ClaimCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimCalls
}

// RefreshCalls returns the number of Refresh invocations.
func (m *MockStore) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// RemoveBatches returns every RemoveRows call's refs, in call order.
func (m *MockStore) RemoveBatches() [][]replica.Ref {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]replica.Ref, len(m.removeBatches))
	copy(out, m.removeBatches)
	return out
}

var _ LeaseStore = (*MockStore)(nil)
