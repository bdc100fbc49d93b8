package reaper

import (
	"fmt"
	"time"
)

// Config holds the tunables of the coordination core. The zero value is not
// usable; call Normalize or start from DefaultConfig.
type Config struct {
	// EnableImmediateCleanup selects the incremental committer: successful
	// deletions are removed from the catalog in DBBatchSize slices during
	// processing instead of all at once after the batch.
	EnableImmediateCleanup bool

	// DBBatchSize is the incremental committer's flush threshold.
	// Default: 50.
	DBBatchSize int

	// RefreshTriggerRatio is the percentage of Delay after which the
	// refresher fires. Default: 80.
	RefreshTriggerRatio int

	// Delay is the lease duration. A BEING_DELETED row older than this is
	// claimable by any worker. Default: 600s.
	Delay time.Duration

	// ChunkSize is both the selector batch bound and the worker sub-chunk
	// size. Default: 100.
	ChunkSize int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		EnableImmediateCleanup: false,
		DBBatchSize:            50,
		RefreshTriggerRatio:    80,
		Delay:                  600 * time.Second,
		ChunkSize:              100,
	}
}

// Normalize fills zero fields with defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.DBBatchSize <= 0 {
		c.DBBatchSize = def.DBBatchSize
	}
	if c.RefreshTriggerRatio <= 0 {
		c.RefreshTriggerRatio = def.RefreshTriggerRatio
	}
	if c.Delay <= 0 {
		c.Delay = def.Delay
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	return c
}

// Validate rejects configurations the core cannot run with.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("reaper: chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.DBBatchSize <= 0 {
		return fmt.Errorf("reaper: db batch size must be positive, got %d", c.DBBatchSize)
	}
	if c.RefreshTriggerRatio <= 0 || c.RefreshTriggerRatio > 100 {
		return fmt.Errorf("reaper: refresh trigger ratio must be in (0, 100], got %d", c.RefreshTriggerRatio)
	}
	if c.Delay <= 0 {
		return fmt.Errorf("reaper: delay must be positive, got %s", c.Delay)
	}
	return nil
}

// TriggerTime is the elapsed batch time after which a refresh is due.
func (c Config) TriggerTime() time.Duration {
	return c.Delay * time.Duration(c.RefreshTriggerRatio) / 100
}

// Mode names the committer variant for logs and events.
func (c Config) Mode() string {
	if c.EnableImmediateCleanup {
		return "immediate"
	}
	return "deferred"
}
