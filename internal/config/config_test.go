package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Reaper.EnableImmediateCleanup)
	assert.Equal(t, 50, cfg.Reaper.DBBatchSize)
	assert.Equal(t, 80, cfg.Reaper.RefreshTriggerRatio)
	assert.Equal(t, int64(600), cfg.Reaper.DelaySeconds)
	assert.Equal(t, 100, cfg.Reaper.ChunkSize)
	assert.Equal(t, "replicas", cfg.Catalog.Table)
	assert.Equal(t, ":9090", cfg.Observability.MetricsAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cull.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reaper:
  rses: [SITE_A, SITE_B]
  enableImmediateCleanup: true
  dbBatchSize: 25
catalog:
  dsn: "cull:secret@tcp(localhost:3306)/catalog?parseTime=true"
storage:
  bucket: replicas
  endpoint: http://localhost:9000
  usePathStyle: true
`), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SITE_A", "SITE_B"}, cfg.Reaper.RSEs)
	assert.True(t, cfg.Reaper.EnableImmediateCleanup)
	assert.Equal(t, 25, cfg.Reaper.DBBatchSize)
	// Untouched keys keep defaults.
	assert.Equal(t, 100, cfg.Reaper.ChunkSize)
	assert.Equal(t, "replicas", cfg.Catalog.Table)
	assert.True(t, cfg.Storage.UsePathStyle)
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CULL_RSES", "SITE_C, SITE_D")
	t.Setenv("CULL_CHUNK_SIZE", "42")
	t.Setenv("CULL_IMMEDIATE_CLEANUP", "true")
	t.Setenv("CULL_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"SITE_C", "SITE_D"}, cfg.Reaper.RSEs)
	assert.Equal(t, 42, cfg.Reaper.ChunkSize)
	assert.True(t, cfg.Reaper.EnableImmediateCleanup)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Reaper.ChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Reaper.RefreshTriggerRatio = 200
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Events.Enabled = true
	assert.Error(t, cfg.Validate(), "enabled events require brokers")
}
