// Package extension provides a Forge extension entry point for the
// fieldgate data layer.
package extension

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/api"
	"github.com/fieldgate/fieldgate/dialect"
	"github.com/fieldgate/fieldgate/permissions"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "fieldgate"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Generic CRUD data layer with declarative row-level security"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the fieldgate data layer as a Forge extension.
type Extension struct {
	config     Config
	db         *fieldgate.Database
	sqlDB      *sql.DB
	apiHandler *api.API
	logger     *slog.Logger
	dbOpts     []fieldgate.Option

	ownsHandle bool
}

// New creates a fieldgate Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Database returns the underlying data layer.
func (e *Extension) Database() *fieldgate.Database { return e.db }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the data layer,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*fieldgate.Database, error) {
		return e.db, nil
	}); err != nil {
		return fmt.Errorf("fieldgate: register database in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	tag := dialect.Dialect(e.config.Dialect)
	if tag == "" {
		tag = dialect.Postgres
	}

	// Handle resolution order: explicit option, DI container, DSN.
	sqlDB := e.sqlDB
	if sqlDB == nil {
		if injected, err := forge.Inject[*sql.DB](fapp.Container()); err == nil {
			sqlDB = injected
		}
	}
	if sqlDB == nil {
		if e.config.DSN == "" {
			return errors.New("fieldgate: no database handle and no dsn configured")
		}
		opened, err := fieldgate.Open(tag, e.config.DSN)
		if err != nil {
			return err
		}
		sqlDB = opened
		e.ownsHandle = true
	}
	e.sqlDB = sqlDB

	adapter, err := dialect.New(tag)
	if err != nil {
		return err
	}
	store := permissions.NewService(
		permissions.NewSQLStore(adapter), sqlDB,
		permissions.WithCache(e.config.permissionCache()),
		permissions.WithLogger(logger),
	)

	dataCfg := fieldgate.DefaultConfig()
	if e.config.CacheTTL > 0 {
		dataCfg.CacheTTL = e.config.CacheTTL
	}
	if e.config.CacheSize > 0 {
		dataCfg.CacheSize = e.config.CacheSize
	}

	opts := make([]fieldgate.Option, 0, len(e.dbOpts)+5)
	opts = append(opts,
		fieldgate.WithDB(sqlDB),
		fieldgate.WithDialect(tag),
		fieldgate.WithPermissions(store),
		fieldgate.WithLogger(logger),
		fieldgate.WithConfig(dataCfg),
	)
	opts = append(opts, e.dbOpts...)

	db, err := fieldgate.NewDatabase(opts...)
	if err != nil {
		return fmt.Errorf("fieldgate: create database: %w", err)
	}
	e.db = db

	e.apiHandler = api.New(db, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("fieldgate: register routes: %w", err)
		}
	}

	return nil
}

// Start creates the permission metadata table unless disabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.db == nil {
		return errors.New("fieldgate: extension not initialized")
	}
	if !e.config.DisableMigrate {
		if err := e.db.Migrate(ctx); err != nil {
			return fmt.Errorf("fieldgate: migration failed: %w", err)
		}
	}
	return nil
}

// Stop closes the database handle if the extension opened it.
func (e *Extension) Stop(ctx context.Context) error {
	if e.ownsHandle && e.sqlDB != nil {
		return e.sqlDB.Close()
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.sqlDB == nil {
		return errors.New("fieldgate: extension not initialized")
	}
	return e.sqlDB.PingContext(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all fieldgate API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
