package dialect

import (
	"fmt"
	"strings"
)

// sqliteAdapter builds SQLite fragments. SQLite has window functions and
// CTEs but no native NULLS FIRST/LAST before 3.30 and no ALTER TABLE ADD
// CONSTRAINT, so NULLS placement is emulated with an IS NULL sort key and
// foreign keys must be declared at table creation.
type sqliteAdapter struct{}

func (sqliteAdapter) Dialect() Dialect { return SQLite }

func (sqliteAdapter) Supports(f Feature) bool {
	switch f {
	case FeatureWindowFunctions, FeatureCTE, FeatureRecursiveCTE,
		FeatureJSON, FeatureReturning:
		return true
	case FeatureNullsOrdering, FeatureArrays, FeatureAlterForeignKey:
		return false
	}
	return false
}

func (sqliteAdapter) QuoteIdent(name string) (string, error) {
	return quoteIdent(name)
}

func (sqliteAdapter) Placeholder(int) string { return "?" }

func (a sqliteAdapter) OrderBy(clauses []OrderClause) ([]string, error) {
	terms := make([]string, 0, len(clauses))
	for _, c := range clauses {
		col, err := a.QuoteIdent(c.Field)
		if err != nil {
			return nil, err
		}
		// Emulated NULLS placement: sort on the null flag ahead of the
		// column itself.
		switch strings.ToLower(c.Nulls) {
		case "":
		case "first":
			terms = append(terms, "("+col+" IS NULL) DESC")
		case "last":
			terms = append(terms, "("+col+" IS NULL) ASC")
		default:
			return nil, fmt.Errorf("dialect: invalid nulls placement %q", c.Nulls)
		}
		if c.Desc {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}
	return terms, nil
}

func (a sqliteAdapter) WindowFunction(spec WindowSpec) (string, error) {
	return buildWindow(a, spec)
}
