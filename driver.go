package fieldgate

import (
	"database/sql"
	"fmt"

	// Database drivers for the supported dialects.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/fieldgate/fieldgate/dialect"
)

// Open opens a database/sql handle for the given dialect using the
// bundled drivers (pgx for Postgres, modernc sqlite for SQLite).
// Callers managing their own driver registration can skip this and pass
// any *sql.DB to WithDB.
func Open(tag dialect.Dialect, dsn string) (*sql.DB, error) {
	var driver string
	switch tag {
	case dialect.Postgres:
		driver = "pgx"
	case dialect.SQLite:
		driver = "sqlite"
	default:
		return nil, fmt.Errorf("fieldgate: unsupported dialect %q", tag)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("fieldgate: open %s: %w", tag, err)
	}
	return db, nil
}
