package reaper

import (
	"context"
	"fmt"

	"github.com/cull-io/cull/internal/leasestore"
	"github.com/cull-io/cull/internal/replica"
)

// Selector claims batches of deletion-eligible replicas for one RSE at a
// time. Every replica in a returned batch has been transitioned to
// BEING_DELETED with a fresh lease stamp; no concurrent Select call on the
// same RSE can return the same replica.
type Selector struct {
	store leasestore.LeaseStore
}

// NewSelector creates a Selector over the given lease store.
func NewSelector(store leasestore.LeaseStore) *Selector {
	return &Selector{store: store}
}

// Select claims up to cfg.ChunkSize eligible replicas at rseID.
// An empty batch means nothing was eligible and is not an error.
func (s *Selector) Select(ctx context.Context, rseID string, cfg Config) (replica.Batch, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("reaper: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if rseID == "" {
		return nil, fmt.Errorf("reaper: rse id is required")
	}

	batch, err := s.store.ClaimBatch(ctx, rseID, cfg.ChunkSize, cfg.Delay)
	if err != nil {
		return nil, fmt.Errorf("reaper: claim batch at %s: %w", rseID, err)
	}
	return batch, nil
}
