package storage

import (
	"context"
	"sync"

	"github.com/cull-io/cull/internal/replica"
)

// MockDeleter implements Deleter for testing.
// It is exported so that tests in other packages can use it.
type MockDeleter struct {
	mu       sync.Mutex
	deleted  []replica.Ref
	attempts int
	fail     map[replica.Ref]error

	// OnDelete, when set, runs before each deletion with the attempt index
	// (0-based). Tests use it to advance fake clocks mid-batch.
	OnDelete func(i int)
}

// NewMockDeleter creates an empty MockDeleter.
func NewMockDeleter() *MockDeleter {
	return &MockDeleter{fail: make(map[replica.Ref]error)}
}

// FailWith makes Delete return err for the given ref.
func (d *MockDeleter) FailWith(ref replica.Ref, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[ref] = err
}

func (d *MockDeleter) Delete(_ context.Context, r replica.Replica) error {
	d.mu.Lock()
	hook := d.OnDelete
	i := d.attempts
	d.attempts++
	d.mu.Unlock()

	if hook != nil {
		hook(i)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.fail[r.Ref]; ok {
		return err
	}
	d.deleted = append(d.deleted, r.Ref)
	return nil
}

// Deleted returns the refs deleted so far, in call order.
func (d *MockDeleter) Deleted() []replica.Ref {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]replica.Ref, len(d.deleted))
	copy(out, d.deleted)
	return out
}

var _ Deleter = (*MockDeleter)(nil)
