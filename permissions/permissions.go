// Package permissions persists and caches per-table permission documents.
//
// Documents live as JSON in the reserved fg_table_permissions metadata
// table. Reads go through a TTL+LRU cache with a synchronous cache-only
// accessor for the evaluation hot path; writes update the cache before
// returning so permissions are read-your-write consistent.
package permissions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/cache"
	"github.com/fieldgate/fieldgate/query"
)

// Backend is the persistence interface behind the Service. Every call
// takes the execution handle explicitly so callers can scope reads and
// writes to their own transaction.
type Backend interface {
	// Load returns the document for table, or an error wrapping
	// fieldgate.ErrNoPermissions when none exists.
	Load(ctx context.Context, q query.Querier, table string) (*fieldgate.TablePermissions, error)

	// Save upserts the document for table.
	Save(ctx context.Context, q query.Querier, table string, doc *fieldgate.TablePermissions) error

	// Remove deletes the document for table. Removing a missing
	// document is not an error.
	Remove(ctx context.Context, q query.Querier, table string) error
}

// Compile-time interface check.
var _ fieldgate.PermissionStore = (*Service)(nil)

// Service is the cached permission store handed to the enforcement
// engine. Safe for concurrent use.
type Service struct {
	backend Backend
	db      query.Querier
	cache   *cache.Memory
	logger  *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithCache replaces the default cache (500 entries, 5 minute TTL).
func WithCache(c *cache.Memory) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over backend. db is the default execution
// handle used when a call carries no transaction.
func NewService(backend Backend, db query.Querier, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		db:      db,
		cache:   cache.NewMemory(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSync returns the cached document for table without touching the
// backend. Used by the evaluation hot path.
func (s *Service) GetSync(table string) (*fieldgate.TablePermissions, bool) {
	return s.cache.Get(table)
}

// Get returns the document for table, reading through the cache.
func (s *Service) Get(ctx context.Context, table string, tx query.Querier) (*fieldgate.TablePermissions, error) {
	if doc, ok := s.cache.Get(table); ok {
		return doc, nil
	}
	doc, err := s.backend.Load(ctx, s.handle(tx), table)
	if err != nil {
		return nil, err
	}
	s.cache.Set(table, doc)
	return doc, nil
}

// Set upserts the document for table and synchronously refreshes the
// cache entry, so no caller can observe a stale document after a
// successful write.
func (s *Service) Set(ctx context.Context, table string, doc *fieldgate.TablePermissions, tx query.Querier) (*fieldgate.TablePermissions, error) {
	if doc == nil {
		return nil, fmt.Errorf("permissions: nil document for table %s", table)
	}
	if err := s.backend.Save(ctx, s.handle(tx), table, doc); err != nil {
		return nil, err
	}
	s.cache.Set(table, doc)
	s.logger.Debug("permissions updated", "table", table)
	return doc, nil
}

// Delete removes the document for table and evicts its cache entry.
func (s *Service) Delete(ctx context.Context, table string, tx query.Querier) error {
	if err := s.backend.Remove(ctx, s.handle(tx), table); err != nil {
		return err
	}
	s.cache.Delete(table)
	return nil
}

// Migrate creates the metadata table when the backend is SQL-backed.
// Memory backends need no migration and return nil.
func (s *Service) Migrate(ctx context.Context) error {
	type migrator interface {
		Migrate(ctx context.Context, q query.Querier) error
	}
	if m, ok := s.backend.(migrator); ok {
		return m.Migrate(ctx, s.db)
	}
	return nil
}

func (s *Service) handle(tx query.Querier) query.Querier {
	if tx != nil {
		return tx
	}
	return s.db
}
