package replica

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefString(t *testing.T) {
	ref := Ref{Scope: "user.alice", Name: "file.0001", RSE: "SITE_A"}
	assert.Equal(t, "user.alice:file.0001@SITE_A", ref.String())
}

func TestBatchRefsPreservesOrder(t *testing.T) {
	batch := Batch{
		{Ref: Ref{Scope: "s", Name: "a", RSE: "X"}},
		{Ref: Ref{Scope: "s", Name: "b", RSE: "X"}},
		{Ref: Ref{Scope: "s", Name: "c", RSE: "X"}},
	}
	refs := batch.Refs()
	assert.Len(t, refs, 3)
	assert.Equal(t, "a", refs[0].Name)
	assert.Equal(t, "b", refs[1].Name)
	assert.Equal(t, "c", refs[2].Name)
}

func TestPartition(t *testing.T) {
	boom := errors.New("endpoint unreachable")
	outcomes := []Outcome{
		{Ref: Ref{Name: "a"}},
		{Ref: Ref{Name: "b"}, Err: boom},
		{Ref: Ref{Name: "c"}},
	}

	succeeded, failed := Partition(outcomes)
	assert.Len(t, succeeded, 2)
	assert.Len(t, failed, 1)
	assert.Equal(t, "a", succeeded[0].Name)
	assert.Equal(t, "c", succeeded[1].Name)
	assert.Equal(t, "b", failed[0].Name)
}

func TestPartitionEmpty(t *testing.T) {
	succeeded, failed := Partition(nil)
	assert.Empty(t, succeeded)
	assert.Empty(t, failed)
}
