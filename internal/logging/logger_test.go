package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	l.Info("dropped")
	l.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "kept")
}

func TestJSONEntryShape(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf}).
		WithWorkerID("worker-1").
		WithBatchID("batch-7")

	l.Infof("batch started", map[string]any{"rse": "SITE_A", "size": 100})

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "batch started", entry.Message)
	assert.Equal(t, "worker-1", entry.WorkerID)
	assert.Equal(t, "batch-7", entry.BatchID)
	assert.Equal(t, "SITE_A", entry.Fields["rse"])
	assert.Equal(t, float64(100), entry.Fields["size"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf}).
		WithWorkerID("worker-1")

	l.Info("refresh fired")

	out := buf.String()
	assert.Contains(t, out, "[info]")
	assert.Contains(t, out, "refresh fired")
	assert.Contains(t, out, "workerId=worker-1")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	child := parent.With(map[string]any{"rse": "SITE_A"})

	parent.Info("parent line")
	child.Info("child line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "SITE_A")
	assert.Contains(t, lines[1], "SITE_A")
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatJSON, ParseFormat("bogus"))
}

func TestGlobalConfigure(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	l := Configure("warn", "text")
	assert.Same(t, l, Global())
	assert.Equal(t, LevelWarn, Global().GetLevel())
}
