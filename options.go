package fieldgate

import (
	"database/sql"
	"log/slog"

	"github.com/fieldgate/fieldgate/dialect"
	"github.com/fieldgate/fieldgate/hook"
)

// Option configures a Database.
type Option func(*Database)

// WithDB sets the database handle. Required.
func WithDB(db *sql.DB) Option {
	return func(d *Database) { d.db = db }
}

// WithDialect sets the SQL dialect. Defaults to Postgres.
func WithDialect(tag dialect.Dialect) Option {
	return func(d *Database) { d.dialectTag = tag }
}

// WithPermissions sets the permission store. Required.
func WithPermissions(store PermissionStore) Option {
	return func(d *Database) { d.store = store }
}

// WithFuncRegistry sets the custom rule-function registry. Defaults to
// an empty registry.
func WithFuncRegistry(r *FuncRegistry) Option {
	return func(d *Database) { d.funcs = r }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Database) { d.logger = l }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(d *Database) { d.cfg = cfg }
}

// WithHook registers a hook on the query/mutation pipeline. May be
// given multiple times; hooks run in registration order.
func WithHook(h hook.Hook) Option {
	return func(d *Database) { d.pendingHooks = append(d.pendingHooks, h) }
}

// WithBroadcaster sets the post-mutation change broadcaster.
func WithBroadcaster(b Broadcaster) Option {
	return func(d *Database) { d.broadcaster = b }
}
