package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fieldgate/fieldgate/dialect"
)

// comparisonOps whitelists raw comparison operators.
var comparisonOps = map[string]string{
	"=": "=", "!=": "<>", "<>": "<>",
	">": ">", ">=": ">=", "<": "<", "<=": "<=",
	"like": "LIKE", "notLike": "NOT LIKE",
}

// aggregateFns whitelists aggregate functions.
var aggregateFns = map[string]string{
	"count": "count", "sum": "sum", "avg": "avg", "min": "min", "max": "max",
}

// Condition is one comparison clause: field <op> value.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// BetweenCondition is an inclusive range filter.
type BetweenCondition struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// WhereGroup is a tree of conditions joined by a single logic operator.
type WhereGroup struct {
	// Logic is "and" or "or"; empty means "and".
	Logic      string       `json:"logic,omitempty"`
	Conditions []Condition  `json:"conditions,omitempty"`
	Groups     []WhereGroup `json:"groups,omitempty"`
}

// Aggregate is one aggregate select expression.
type Aggregate struct {
	Fn    string `json:"fn"`
	Field string `json:"field,omitempty"`
	Alias string `json:"alias"`
}

// CTE names a common table expression built from another table's Params.
type CTE struct {
	Name   string  `json:"name"`
	Table  string  `json:"table"`
	Params *Params `json:"params,omitempty"`
}

// Params is the declarative description of a query. The translator renders
// clauses in a fixed order: select → aggregates → windows → CTEs → equality
// filters → raw comparisons → between → null checks → in/notIn → grouped
// trees → group by → having → order by → limit → offset.
type Params struct {
	Select   []string `json:"select,omitempty"`
	Distinct bool     `json:"distinct,omitempty"`

	Filter  map[string]any     `json:"filter,omitempty"`
	Where   []Condition        `json:"where,omitempty"`
	Between []BetweenCondition `json:"between,omitempty"`
	In      map[string][]any   `json:"in,omitempty"`
	NotIn   map[string][]any   `json:"notIn,omitempty"`
	Null    []string           `json:"null,omitempty"`
	NotNull []string           `json:"notNull,omitempty"`
	Groups  []WhereGroup       `json:"groups,omitempty"`

	GroupBy    []string              `json:"groupBy,omitempty"`
	Having     []Condition           `json:"having,omitempty"`
	Aggregates []Aggregate           `json:"aggregates,omitempty"`
	Windows    []dialect.WindowSpec  `json:"windows,omitempty"`
	CTEs       []CTE                 `json:"ctes,omitempty"`
	OrderBy    []dialect.OrderClause `json:"orderBy,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func invalidf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, a...))
}

// Validate checks identifiers, operator whitelists, and clause
// preconditions before any SQL is rendered.
func (p *Params) Validate() error {
	if p == nil {
		return nil
	}
	for _, col := range p.Select {
		if !dialect.ValidIdent(col) && col != "*" {
			return invalidf("select column %q", col)
		}
	}
	for col := range p.Filter {
		if !dialect.ValidIdent(col) {
			return invalidf("filter column %q", col)
		}
	}
	for _, c := range p.Where {
		if err := c.validate(); err != nil {
			return err
		}
	}
	for _, b := range p.Between {
		if !dialect.ValidIdent(b.Field) {
			return invalidf("between column %q", b.Field)
		}
	}
	for col, vals := range p.In {
		if !dialect.ValidIdent(col) {
			return invalidf("in column %q", col)
		}
		if len(vals) == 0 {
			return invalidf("in filter on %q has no values", col)
		}
	}
	for col, vals := range p.NotIn {
		if !dialect.ValidIdent(col) {
			return invalidf("notIn column %q", col)
		}
		if len(vals) == 0 {
			return invalidf("notIn filter on %q has no values", col)
		}
	}
	for _, col := range append(append([]string{}, p.Null...), p.NotNull...) {
		if !dialect.ValidIdent(col) {
			return invalidf("null-check column %q", col)
		}
	}
	for _, g := range p.Groups {
		if err := g.validate(); err != nil {
			return err
		}
	}
	for _, col := range p.GroupBy {
		if !dialect.ValidIdent(col) {
			return invalidf("groupBy column %q", col)
		}
	}
	if len(p.Having) > 0 && len(p.GroupBy) == 0 {
		return invalidf("having requires groupBy")
	}
	for _, h := range p.Having {
		if err := h.validate(); err != nil {
			return err
		}
	}
	for _, agg := range p.Aggregates {
		if _, ok := aggregateFns[agg.Fn]; !ok {
			return invalidf("aggregate fn %q", agg.Fn)
		}
		if agg.Field != "" && agg.Field != "*" && !dialect.ValidIdent(agg.Field) {
			return invalidf("aggregate field %q", agg.Field)
		}
		if !dialect.ValidIdent(agg.Alias) {
			return invalidf("aggregate alias %q", agg.Alias)
		}
	}
	for _, cte := range p.CTEs {
		if !dialect.ValidIdent(cte.Name) {
			return invalidf("cte name %q", cte.Name)
		}
		if !dialect.ValidIdent(cte.Table) {
			return invalidf("cte table %q", cte.Table)
		}
		if cte.Params != nil {
			if len(cte.Params.CTEs) > 0 {
				return invalidf("cte %q: nested ctes are not supported", cte.Name)
			}
			if err := cte.Params.Validate(); err != nil {
				return err
			}
		}
	}
	if p.Limit < 0 {
		return invalidf("negative limit")
	}
	if p.Offset < 0 {
		return invalidf("negative offset")
	}
	return nil
}

func (c Condition) validate() error {
	if !dialect.ValidIdent(c.Field) {
		return invalidf("condition column %q", c.Field)
	}
	if _, ok := comparisonOps[c.Operator]; !ok {
		return invalidf("condition operator %q", c.Operator)
	}
	return nil
}

func (g WhereGroup) validate() error {
	switch strings.ToLower(g.Logic) {
	case "", "and", "or":
	default:
		return invalidf("group logic %q", g.Logic)
	}
	for _, c := range g.Conditions {
		if err := c.validate(); err != nil {
			return err
		}
	}
	for _, sub := range g.Groups {
		if err := sub.validate(); err != nil {
			return err
		}
	}
	return nil
}

// sortedKeys gives map-backed clauses a deterministic render order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
