package extension

import (
	"time"

	"github.com/fieldgate/fieldgate/cache"
)

// Config holds the fieldgate extension configuration.
// Fields can be set programmatically via ExtOption functions or loaded
// from YAML configuration files (under "extensions.fieldgate" or
// "fieldgate" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents creation of the permission metadata table
	// on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Dialect selects the SQL dialect ("postgres" or "sqlite").
	Dialect string `json:"dialect" mapstructure:"dialect" yaml:"dialect"`

	// DSN is the database connection string, used when no *sql.DB is
	// provided programmatically or via the DI container.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// CacheTTL is the time-to-live for cached permission documents.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// CacheSize bounds the permission cache entry count.
	CacheSize int `json:"cache_size" mapstructure:"cache_size" yaml:"cache_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Dialect:   "postgres",
		CacheTTL:  5 * time.Minute,
		CacheSize: 500,
	}
}

// permissionCache builds the permission cache the extension hands to
// the store. Zero values fall back to the cache defaults.
func (c Config) permissionCache() *cache.Memory {
	var opts []cache.Option
	if c.CacheTTL > 0 {
		opts = append(opts, cache.WithTTL(c.CacheTTL))
	}
	if c.CacheSize > 0 {
		opts = append(opts, cache.WithMaxSize(c.CacheSize))
	}
	return cache.NewMemory(opts...)
}
