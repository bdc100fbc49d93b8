// Package replica defines the replica data model shared by the reaper
// components: replica identity, catalog state, batches, and per-replica
// deletion outcomes.
package replica

import (
	"fmt"
	"time"
)

// State is the catalog state of a replica.
type State string

const (
	// StateAvailable means the replica is live and not claimed by any worker.
	StateAvailable State = "AVAILABLE"

	// StateBeingDeleted means a worker holds a deletion lease on the replica.
	// The lease is the pair (state, UpdatedAt); it expires once UpdatedAt is
	// older than the configured delay.
	StateBeingDeleted State = "BEING_DELETED"

	// StateUnavailable is carried opaquely; the reaper never selects or
	// transitions replicas in this state.
	StateUnavailable State = "UNAVAILABLE"
)

// Ref identifies one physical replica: (scope, name) identify the data
// object, RSE identifies the storage location holding this copy.
type Ref struct {
	Scope string
	Name  string
	RSE   string
}

// String returns the canonical scope:name@rse form used in logs and events.
func (r Ref) String() string {
	return fmt.Sprintf("%s:%s@%s", r.Scope, r.Name, r.RSE)
}

// Replica is a catalog row as seen by the reaper. Bytes and Path are opaque
// to the coordination core and passed through to the physical deleter.
type Replica struct {
	Ref       Ref
	State     State
	UpdatedAt time.Time
	Bytes     int64
	Path      string
}

// Batch is an ordered set of replicas claimed by one Select call.
// A batch is processed by exactly one worker and never shared.
type Batch []Replica

// Refs returns the refs of all replicas in the batch, in order.
func (b Batch) Refs() []Ref {
	refs := make([]Ref, len(b))
	for i, r := range b {
		refs[i] = r.Ref
	}
	return refs
}

// Outcome records the result of one physical deletion attempt.
// Err is nil on success.
type Outcome struct {
	Ref Ref
	Err error
}

// Succeeded reports whether the deletion succeeded.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Partition splits outcomes into succeeded and failed refs, preserving order.
func Partition(outcomes []Outcome) (succeeded, failed []Ref) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded = append(succeeded, o.Ref)
		} else {
			failed = append(failed, o.Ref)
		}
	}
	return succeeded, failed
}
