// Package query translates declarative query descriptions into
// dialect-correct SQL and executes them against a database/sql handle.
//
// Params is not a security boundary: permission enforcement happens in
// the fieldgate root package before and after translation. Every filter
// value is bound as a parameter; identifiers are validated and quoted
// through the dialect adapter.
package query

import (
	"context"
	"database/sql"
	"errors"
)

// ErrInvalidParams is wrapped by every parameter validation failure.
var ErrInvalidParams = errors.New("query: invalid params")

// Row is a single result row keyed by column name. Values come from the
// scanner's closed set: string, int64, float64, bool, time.Time, nil.
type Row map[string]any

// Querier is the execution handle the translator runs against. Both
// *sql.DB and *sql.Tx satisfy it, which is how request-scoped
// transactions propagate end to end.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)
