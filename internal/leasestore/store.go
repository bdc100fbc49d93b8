// Package leasestore defines the LeaseStore interface over the shared replica
// catalog. The catalog is the only shared mutable resource in the system:
// workers coordinate exclusively through row state and lease timestamps, with
// no lock manager. The default implementation uses MySQL (see the sql
// subpackage); MockStore provides the same semantics in memory for tests.
package leasestore

import (
	"context"
	"errors"
	"time"

	"github.com/cull-io/cull/internal/replica"
)

// Common errors returned by LeaseStore operations.
var (
	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("leasestore: store closed")

	// ErrNotFound is returned by UpdatedAt when the row does not exist.
	ErrNotFound = errors.New("leasestore: replica not found")
)

// LeaseStore is the catalog surface the reaper consumes.
//
// ClaimBatch and Refresh are the two lease primitives; RemoveRows is the
// catalog delete used by the committer. No replica may be returned by two
// concurrent ClaimBatch calls: per-row claims must be atomic.
type LeaseStore interface {
	// ClaimBatch claims up to limit replicas at the given RSE that are
	// eligible for deletion: state AVAILABLE, or BEING_DELETED with a lease
	// timestamp older than delay. Every returned replica has been
	// transitioned to BEING_DELETED with UpdatedAt set to now. An empty
	// batch means nothing was eligible; it is not an error.
	ClaimBatch(ctx context.Context, rseID string, limit int, delay time.Duration) (replica.Batch, error)

	// Refresh restamps UpdatedAt = now on the given refs, touching only rows
	// still in BEING_DELETED. Rows that were removed or reassigned in the
	// meantime are skipped: this is optimistic, not exclusive. Returns the
	// number of rows actually restamped.
	Refresh(ctx context.Context, rseID string, refs []replica.Ref) (int, error)

	// RemoveRows deletes the given rows from the catalog. Used to commit
	// successful physical deletions; removal is authoritative over any
	// concurrent refresh.
	RemoveRows(ctx context.Context, refs []replica.Ref) error

	// UpdatedAt returns the current lease timestamp of one row.
	// Diagnostic accessor, used by tests and operational tooling.
	UpdatedAt(ctx context.Context, ref replica.Ref) (time.Time, error)
}
