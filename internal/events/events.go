// Package events defines the structured events the reaper emits and the
// Emitter interface that carries them to an external sink. Formatting and
// delivery are the sink's concern; the core only produces typed events.
package events

import (
	"context"
	"time"

	"github.com/cull-io/cull/internal/replica"
)

// Type names an event. Values are stable and appear on the wire.
type Type string

const (
	TypeBatchStarted     Type = "reaper.batch_started"
	TypeBatchCompleted   Type = "reaper.batch_completed"
	TypeRefreshTriggered Type = "reaper.refresh_triggered"
	TypeRefreshFailed    Type = "reaper.refresh_failed"
	TypeDeletionDone     Type = "reaper.deletion_done"
	TypeDeletionFailed   Type = "reaper.deletion_failed"
)

// Event is one structured reaper event.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  string    `json:"workerId,omitempty"`
	RSE       string    `json:"rse,omitempty"`

	// Batch lifecycle fields.
	Mode      string `json:"mode,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Committed int    `json:"committed,omitempty"`
	Remainder int    `json:"remainder,omitempty"`
	Failures  int    `json:"failures,omitempty"`

	// Refresh fields.
	ElapsedMs   int64 `json:"elapsedMs,omitempty"`
	Outstanding int   `json:"outstanding,omitempty"`

	// Per-replica fields.
	Scope string `json:"scope,omitempty"`
	Name  string `json:"name,omitempty"`
	Bytes int64  `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

// Emitter delivers events to a sink. Implementations must not block the
// reaper's hot path on sink failures.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Recorder accumulates events in memory for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.Events = append(r.Events, ev)
}

// ByType returns recorded events of one type, in emission order.
func (r *Recorder) ByType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// DeletionDone builds the per-replica success event.
func DeletionDone(workerID string, r replica.Replica) Event {
	return Event{
		Type:      TypeDeletionDone,
		Timestamp: time.Now().UTC(),
		WorkerID:  workerID,
		RSE:       r.Ref.RSE,
		Scope:     r.Ref.Scope,
		Name:      r.Ref.Name,
		Bytes:     r.Bytes,
	}
}

// DeletionFailed builds the per-replica failure event.
func DeletionFailed(workerID string, r replica.Replica, err error) Event {
	ev := DeletionDone(workerID, r)
	ev.Type = TypeDeletionFailed
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
