package dialect

import (
	"fmt"
	"strings"
)

// postgresAdapter builds PostgreSQL fragments. Postgres supports every
// optional feature this layer uses, including native NULLS FIRST/LAST.
type postgresAdapter struct{}

func (postgresAdapter) Dialect() Dialect { return Postgres }

func (postgresAdapter) Supports(f Feature) bool {
	switch f {
	case FeatureWindowFunctions, FeatureCTE, FeatureRecursiveCTE,
		FeatureNullsOrdering, FeatureJSON, FeatureArrays,
		FeatureReturning, FeatureAlterForeignKey:
		return true
	}
	return false
}

func (postgresAdapter) QuoteIdent(name string) (string, error) {
	return quoteIdent(name)
}

func (postgresAdapter) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (a postgresAdapter) OrderBy(clauses []OrderClause) ([]string, error) {
	terms := make([]string, 0, len(clauses))
	for _, c := range clauses {
		col, err := a.QuoteIdent(c.Field)
		if err != nil {
			return nil, err
		}
		term := col + " ASC"
		if c.Desc {
			term = col + " DESC"
		}
		switch strings.ToLower(c.Nulls) {
		case "":
		case "first":
			term += " NULLS FIRST"
		case "last":
			term += " NULLS LAST"
		default:
			return nil, fmt.Errorf("dialect: invalid nulls placement %q", c.Nulls)
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func (a postgresAdapter) WindowFunction(spec WindowSpec) (string, error) {
	return buildWindow(a, spec)
}
