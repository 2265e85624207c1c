// Package dialect defines the database adapter abstraction: an explicit
// dialect tag chosen at configuration time plus per-dialect SQL fragment
// builders for the pieces that differ between engines (window functions,
// NULLS placement in ORDER BY, placeholders, feature support). No runtime
// driver introspection happens anywhere.
package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect tags a supported database engine.
type Dialect string

const (
	// Postgres targets PostgreSQL.
	Postgres Dialect = "postgres"

	// SQLite targets the SQLite family.
	SQLite Dialect = "sqlite"
)

// Feature enumerates optional engine capabilities.
type Feature int

const (
	FeatureWindowFunctions Feature = iota
	FeatureCTE
	FeatureRecursiveCTE
	FeatureNullsOrdering
	FeatureJSON
	FeatureArrays
	FeatureReturning
	FeatureAlterForeignKey
)

// OrderClause is one ORDER BY term with explicit NULLS placement.
type OrderClause struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`

	// Nulls is "", "first", or "last".
	Nulls string `json:"nulls,omitempty"`
}

// WindowSpec describes a window-function expression.
type WindowSpec struct {
	// Fn is the window function: row_number, rank, dense_rank, lag, lead,
	// sum, avg, min, max, count.
	Fn string `json:"fn"`

	// Field is the function argument, empty for ranking functions.
	Field string `json:"field,omitempty"`

	PartitionBy []string      `json:"partitionBy,omitempty"`
	OrderBy     []OrderClause `json:"orderBy,omitempty"`
	Alias       string        `json:"alias"`
}

// Adapter builds dialect-specific SQL fragments.
type Adapter interface {
	// Dialect returns the engine tag.
	Dialect() Dialect

	// Supports reports whether the engine implements the feature.
	Supports(f Feature) bool

	// QuoteIdent validates and quotes an identifier. Invalid identifiers
	// return an error rather than being passed through.
	QuoteIdent(name string) (string, error)

	// Placeholder renders the n-th (1-based) bind placeholder.
	Placeholder(n int) string

	// OrderBy renders ORDER BY terms, normalizing NULLS placement to
	// whatever the engine supports.
	OrderBy(clauses []OrderClause) ([]string, error)

	// WindowFunction renders a window-function select expression
	// including its alias.
	WindowFunction(spec WindowSpec) (string, error)
}

// New returns the adapter for the given dialect tag.
func New(d Dialect) (Adapter, error) {
	switch d {
	case Postgres:
		return &postgresAdapter{}, nil
	case SQLite:
		return &sqliteAdapter{}, nil
	default:
		return nil, fmt.Errorf("dialect: unsupported dialect %q", d)
	}
}

// identRe accepts plain SQL identifiers, optionally schema-qualified.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// ValidIdent reports whether name is a safe SQL identifier.
func ValidIdent(name string) bool {
	return name != "" && len(name) <= 128 && identRe.MatchString(name)
}

// quoteIdent double-quotes an identifier, quoting each dot-separated part.
// Both supported engines accept double-quoted identifiers.
func quoteIdent(name string) (string, error) {
	if !ValidIdent(name) {
		return "", fmt.Errorf("dialect: invalid identifier %q", name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, "."), nil
}

var windowFns = map[string]bool{
	"row_number": true, "rank": true, "dense_rank": true,
	"lag": true, "lead": true,
	"sum": true, "avg": true, "min": true, "max": true, "count": true,
}

// windowNeedsArg marks functions that require a column argument.
var windowNeedsArg = map[string]bool{
	"lag": true, "lead": true,
	"sum": true, "avg": true, "min": true, "max": true,
}

// buildWindow renders the shared portion of a window expression. The
// OVER clause ordering goes through the adapter so NULLS placement stays
// dialect-correct.
func buildWindow(a Adapter, spec WindowSpec) (string, error) {
	fn := strings.ToLower(spec.Fn)
	if !windowFns[fn] {
		return "", fmt.Errorf("dialect: unsupported window function %q", spec.Fn)
	}
	if spec.Alias == "" {
		return "", fmt.Errorf("dialect: window function %q requires an alias", spec.Fn)
	}

	var arg string
	switch {
	case spec.Field != "":
		q, err := a.QuoteIdent(spec.Field)
		if err != nil {
			return "", err
		}
		arg = q
	case fn == "count":
		arg = "*"
	case windowNeedsArg[fn]:
		return "", fmt.Errorf("dialect: window function %q requires a field", spec.Fn)
	}

	var over []string
	if len(spec.PartitionBy) > 0 {
		cols := make([]string, len(spec.PartitionBy))
		for i, c := range spec.PartitionBy {
			q, err := a.QuoteIdent(c)
			if err != nil {
				return "", err
			}
			cols[i] = q
		}
		over = append(over, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if len(spec.OrderBy) > 0 {
		terms, err := a.OrderBy(spec.OrderBy)
		if err != nil {
			return "", err
		}
		over = append(over, "ORDER BY "+strings.Join(terms, ", "))
	}

	alias, err := a.QuoteIdent(spec.Alias)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s) OVER (%s) AS %s", fn, arg, strings.Join(over, " "), alias), nil
}
