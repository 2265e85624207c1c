package fieldgate

import "time"

// MetaTable is the reserved table holding permission documents. It is
// always excluded from data and schema endpoints.
const MetaTable = "fg_table_permissions"

// Config holds configuration for the data layer.
type Config struct {
	// EnforceRLS toggles permission enforcement globally. Defaults to true.
	EnforceRLS *bool `json:"enforce_rls,omitempty"`

	// CacheTTL is the time-to-live for cached permission documents.
	// Defaults to 5 minutes.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// CacheSize bounds the permission cache entry count. Defaults to 500.
	CacheSize int `json:"cache_size,omitempty"`

	// ChunkSize is the row count per chunk for array filtering.
	// Defaults to 1000.
	ChunkSize int `json:"chunk_size,omitempty"`

	// BroadcastBatchSize bounds concurrent realtime fan-out per batch.
	// Defaults to 100.
	BroadcastBatchSize int `json:"broadcast_batch_size,omitempty"`

	// ExcludedTables are table names rejected before any permission logic.
	// MetaTable is always excluded regardless of this list.
	ExcludedTables []string `json:"excluded_tables,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		EnforceRLS:         &t,
		CacheTTL:           5 * time.Minute,
		CacheSize:          500,
		ChunkSize:          1000,
		BroadcastBatchSize: 100,
	}
}

func (c Config) rlsEnabled() bool { return c.EnforceRLS == nil || *c.EnforceRLS }

func (c Config) chunkSize() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return 1000
}

func (c Config) excluded(table string) bool {
	if table == MetaTable {
		return true
	}
	for _, t := range c.ExcludedTables {
		if t == table {
			return true
		}
	}
	return false
}
