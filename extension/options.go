package extension

import (
	"database/sql"
	"log/slog"

	"github.com/fieldgate/fieldgate"
)

// ExtOption configures the fieldgate Forge extension.
type ExtOption func(*Extension)

// WithDB sets the database handle directly, bypassing DSN-based opening.
func WithDB(db *sql.DB) ExtOption {
	return func(e *Extension) {
		e.sqlDB = db
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithDatabaseOptions adds options passed through to
// fieldgate.NewDatabase.
func WithDatabaseOptions(opts ...fieldgate.Option) ExtOption {
	return func(e *Extension) {
		e.dbOpts = append(e.dbOpts, opts...)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables metadata-table creation on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
