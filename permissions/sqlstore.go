package permissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/dialect"
	"github.com/fieldgate/fieldgate/query"
)

// Compile-time interface check.
var _ Backend = (*SQLStore)(nil)

// SQLStore persists permission documents in the fg_table_permissions
// metadata table. The same implementation serves both dialects; only
// placeholder style and column types differ.
type SQLStore struct {
	adapter dialect.Adapter
}

// NewSQLStore creates a store for the given dialect adapter.
func NewSQLStore(a dialect.Adapter) *SQLStore {
	return &SQLStore{adapter: a}
}

// Migrate creates the metadata table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context, q query.Querier) error {
	var ddl string
	switch s.adapter.Dialect() {
	case dialect.Postgres:
		ddl = `
CREATE TABLE IF NOT EXISTS fg_table_permissions (
    table_name  TEXT PRIMARY KEY,
    permissions JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	default:
		ddl = `
CREATE TABLE IF NOT EXISTS fg_table_permissions (
    table_name  TEXT PRIMARY KEY,
    permissions TEXT NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
)`
	}
	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("permissions: migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, q query.Querier, table string) (*fieldgate.TablePermissions, error) {
	stmt := fmt.Sprintf(
		`SELECT permissions FROM fg_table_permissions WHERE table_name = %s`,
		s.adapter.Placeholder(1),
	)
	var raw string
	err := q.QueryRowContext(ctx, stmt, table).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("table %s: %w", table, fieldgate.ErrNoPermissions)
		}
		return nil, fmt.Errorf("permissions: load %s: %w", table, err)
	}
	doc := new(fieldgate.TablePermissions)
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, fmt.Errorf("permissions: decode %s: %w", table, err)
	}
	return doc, nil
}

func (s *SQLStore) Save(ctx context.Context, q query.Querier, table string, doc *fieldgate.TablePermissions) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("permissions: encode %s: %w", table, err)
	}
	now := time.Now().UTC()
	stmt := fmt.Sprintf(`
INSERT INTO fg_table_permissions (table_name, permissions, created_at, updated_at)
VALUES (%s, %s, %s, %s)
ON CONFLICT (table_name)
DO UPDATE SET permissions = excluded.permissions, updated_at = excluded.updated_at`,
		s.adapter.Placeholder(1), s.adapter.Placeholder(2),
		s.adapter.Placeholder(3), s.adapter.Placeholder(4),
	)
	if _, err := q.ExecContext(ctx, stmt, table, string(raw), now, now); err != nil {
		return fmt.Errorf("permissions: save %s: %w", table, err)
	}
	return nil
}

func (s *SQLStore) Remove(ctx context.Context, q query.Querier, table string) error {
	stmt := fmt.Sprintf(
		`DELETE FROM fg_table_permissions WHERE table_name = %s`,
		s.adapter.Placeholder(1),
	)
	if _, err := q.ExecContext(ctx, stmt, table); err != nil {
		return fmt.Errorf("permissions: delete %s: %w", table, err)
	}
	return nil
}
