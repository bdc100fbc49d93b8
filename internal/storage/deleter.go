// Package storage defines the Deleter interface for removing physical
// replicas from storage endpoints.
//
// The reaper core invokes Delete once per replica and only distinguishes
// success from failure; endpoint-specific semantics live in the
// implementations. An already-missing replica is reported as ErrNotFound
// and treated as a successful deletion by callers.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cull-io/cull/internal/replica"
)

// ErrNotFound is returned when the replica does not exist on the endpoint.
var ErrNotFound = errors.New("storage: replica not found")

// OpError wraps an error with the operation and replica for context.
type OpError struct {
	Op  string
	Ref replica.Ref
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Deleter removes physical replicas from a storage endpoint.
type Deleter interface {
	// Delete removes the replica's physical data. Returns ErrNotFound if
	// the replica is already gone.
	Delete(ctx context.Context, r replica.Replica) error
}
