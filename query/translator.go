package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fieldgate/fieldgate/dialect"
)

// Translator renders Params into dialect-correct SQL. One instance per
// dialect; safe for concurrent use.
type Translator struct {
	adapter dialect.Adapter
}

// NewTranslator creates a translator for the given adapter.
func NewTranslator(a dialect.Adapter) *Translator {
	return &Translator{adapter: a}
}

// Adapter returns the underlying dialect adapter.
func (t *Translator) Adapter() dialect.Adapter { return t.adapter }

// Select renders a SELECT statement for table.
func (t *Translator) Select(table string, p *Params) (string, []any, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}
	if p == nil {
		p = &Params{}
	}
	b := newBuilder(t.adapter)

	if err := t.writeCTEs(b, p); err != nil {
		return "", nil, err
	}

	b.raw("SELECT ")
	if p.Distinct {
		b.raw("DISTINCT ")
	}
	if err := t.writeColumns(b, p); err != nil {
		return "", nil, err
	}
	b.raw(" FROM ").ident(table)

	t.writeWhere(b, p)

	if len(p.GroupBy) > 0 {
		b.raw(" GROUP BY ")
		for i, col := range p.GroupBy {
			if i > 0 {
				b.raw(", ")
			}
			b.ident(col)
		}
		if len(p.Having) > 0 {
			b.raw(" HAVING ")
			for i, c := range p.Having {
				if i > 0 {
					b.raw(" AND ")
				}
				t.writeCondition(b, c)
			}
		}
	}

	if len(p.OrderBy) > 0 {
		terms, err := t.adapter.OrderBy(p.OrderBy)
		if err != nil {
			return "", nil, err
		}
		b.raw(" ORDER BY " + strings.Join(terms, ", "))
	}

	if p.Limit > 0 {
		b.raw(" LIMIT ").arg(int64(p.Limit))
	}
	if p.Offset > 0 {
		b.raw(" OFFSET ").arg(int64(p.Offset))
	}

	return b.build()
}

// Count renders a SELECT count(*) honoring the filter clauses of p and
// ignoring its selection, ordering, and pagination.
func (t *Translator) Count(table string, p *Params) (string, []any, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}
	if p == nil {
		p = &Params{}
	}
	b := newBuilder(t.adapter)
	b.raw("SELECT count(*) AS ").ident("count").raw(" FROM ").ident(table)
	t.writeWhere(b, p)
	return b.build()
}

// Insert renders a multi-row INSERT. Column order is the sorted union of
// all row keys; rows missing a column bind NULL for it. RETURNING * is
// appended when the engine supports it so callers get the stored rows
// (defaults, generated keys) back without a second round trip.
func (t *Translator) Insert(table string, rows []Row) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, invalidf("insert with no rows")
	}
	colSet := map[string]struct{}{}
	for _, r := range rows {
		for col := range r {
			if !dialect.ValidIdent(col) {
				return "", nil, invalidf("insert column %q", col)
			}
			colSet[col] = struct{}{}
		}
	}
	if len(colSet) == 0 {
		return "", nil, invalidf("insert rows have no columns")
	}
	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	b := newBuilder(t.adapter)
	b.raw("INSERT INTO ").ident(table).raw(" (")
	for i, col := range cols {
		if i > 0 {
			b.raw(", ")
		}
		b.ident(col)
	}
	b.raw(") VALUES ")
	for i, r := range rows {
		if i > 0 {
			b.raw(", ")
		}
		b.raw("(")
		for j, col := range cols {
			if j > 0 {
				b.raw(", ")
			}
			b.arg(r[col])
		}
		b.raw(")")
	}
	if t.adapter.Supports(dialect.FeatureReturning) {
		b.raw(" RETURNING *")
	}
	return b.build()
}

// Update renders an UPDATE with the filter clauses of p as its WHERE.
// An empty p is rejected: a permission layer must never emit an
// unbounded UPDATE.
func (t *Translator) Update(table string, data Row, p *Params) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, invalidf("update with no data")
	}
	if !hasFilters(p) {
		return "", nil, invalidf("update without filters")
	}
	if err := p.Validate(); err != nil {
		return "", nil, err
	}

	cols := make([]string, 0, len(data))
	for col := range data {
		if !dialect.ValidIdent(col) {
			return "", nil, invalidf("update column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	b := newBuilder(t.adapter)
	b.raw("UPDATE ").ident(table).raw(" SET ")
	for i, col := range cols {
		if i > 0 {
			b.raw(", ")
		}
		b.ident(col).raw(" = ").arg(data[col])
	}
	t.writeWhere(b, p)
	if t.adapter.Supports(dialect.FeatureReturning) {
		b.raw(" RETURNING *")
	}
	return b.build()
}

// Delete renders a DELETE with the filter clauses of p as its WHERE.
// An empty p is rejected for the same reason as Update.
func (t *Translator) Delete(table string, p *Params) (string, []any, error) {
	if !hasFilters(p) {
		return "", nil, invalidf("delete without filters")
	}
	if err := p.Validate(); err != nil {
		return "", nil, err
	}
	b := newBuilder(t.adapter)
	b.raw("DELETE FROM ").ident(table)
	t.writeWhere(b, p)
	return b.build()
}

func hasFilters(p *Params) bool {
	if p == nil {
		return false
	}
	return len(p.Filter) > 0 || len(p.Where) > 0 || len(p.Between) > 0 ||
		len(p.In) > 0 || len(p.NotIn) > 0 || len(p.Null) > 0 ||
		len(p.NotNull) > 0 || len(p.Groups) > 0
}

// writeColumns renders the select list: explicit selection, or the
// groupBy-implied selection, or *, each followed by aggregate and
// window expressions.
func (t *Translator) writeColumns(b *builder, p *Params) error {
	var wrote bool
	write := func(f func()) {
		if wrote {
			b.raw(", ")
		}
		f()
		wrote = true
	}

	switch {
	case len(p.Select) > 0:
		for _, col := range p.Select {
			if col == "*" {
				write(func() { b.raw("*") })
				continue
			}
			c := col
			write(func() { b.ident(c) })
		}
	case len(p.GroupBy) > 0:
		for _, col := range p.GroupBy {
			c := col
			write(func() { b.ident(c) })
		}
	default:
		write(func() { b.raw("*") })
	}

	for _, agg := range p.Aggregates {
		a := agg
		write(func() {
			b.raw(aggregateFns[a.Fn] + "(")
			if a.Field == "" || a.Field == "*" {
				b.raw("*")
			} else {
				b.ident(a.Field)
			}
			b.raw(") AS ").ident(a.Alias)
		})
	}

	for _, w := range p.Windows {
		if !t.adapter.Supports(dialect.FeatureWindowFunctions) {
			return fmt.Errorf("%w: window functions unsupported on %s", ErrInvalidParams, t.adapter.Dialect())
		}
		expr, err := t.adapter.WindowFunction(w)
		if err != nil {
			return err
		}
		e := expr
		write(func() { b.raw(e) })
	}
	return nil
}

func (t *Translator) writeCTEs(b *builder, p *Params) error {
	if len(p.CTEs) == 0 {
		return nil
	}
	if !t.adapter.Supports(dialect.FeatureCTE) {
		return fmt.Errorf("%w: ctes unsupported on %s", ErrInvalidParams, t.adapter.Dialect())
	}
	b.raw("WITH ")
	for i, cte := range p.CTEs {
		if i > 0 {
			b.raw(", ")
		}
		b.ident(cte.Name).raw(" AS (")
		inner := cte.Params
		if inner == nil {
			inner = &Params{}
		}
		// Inline the sub-select; the shared builder keeps placeholder
		// numbering consistent.
		b.raw("SELECT ")
		if err := t.writeColumns(b, inner); err != nil {
			return err
		}
		b.raw(" FROM ").ident(cte.Table)
		t.writeWhere(b, inner)
		b.raw(")")
	}
	b.raw(" ")
	return nil
}

// writeWhere renders all filter clauses in the fixed order: equality →
// raw comparisons → between → null checks → in/notIn → grouped trees.
func (t *Translator) writeWhere(b *builder, p *Params) {
	var wrote bool
	next := func() {
		if wrote {
			b.raw(" AND ")
		} else {
			b.raw(" WHERE ")
			wrote = true
		}
	}

	for _, col := range sortedKeys(p.Filter) {
		next()
		v := p.Filter[col]
		if v == nil {
			b.ident(col).raw(" IS NULL")
			continue
		}
		b.ident(col).raw(" = ").arg(v)
	}
	for _, c := range p.Where {
		next()
		t.writeCondition(b, c)
	}
	for _, bt := range p.Between {
		next()
		b.ident(bt.Field).raw(" BETWEEN ").arg(bt.From).raw(" AND ").arg(bt.To)
	}
	for _, col := range p.Null {
		next()
		b.ident(col).raw(" IS NULL")
	}
	for _, col := range p.NotNull {
		next()
		b.ident(col).raw(" IS NOT NULL")
	}
	for _, col := range sortedKeys(p.In) {
		next()
		b.ident(col).raw(" IN ").argList(p.In[col])
	}
	for _, col := range sortedKeys(p.NotIn) {
		next()
		b.ident(col).raw(" NOT IN ").argList(p.NotIn[col])
	}
	for _, g := range p.Groups {
		next()
		t.writeGroup(b, g)
	}
}

func (t *Translator) writeCondition(b *builder, c Condition) {
	b.ident(c.Field).raw(" " + comparisonOps[c.Operator] + " ").arg(c.Value)
}

func (t *Translator) writeGroup(b *builder, g WhereGroup) {
	joiner := " AND "
	if strings.EqualFold(g.Logic, "or") {
		joiner = " OR "
	}
	b.raw("(")
	var wrote bool
	for _, c := range g.Conditions {
		if wrote {
			b.raw(joiner)
		}
		t.writeCondition(b, c)
		wrote = true
	}
	for _, sub := range g.Groups {
		if wrote {
			b.raw(joiner)
		}
		t.writeGroup(b, sub)
		wrote = true
	}
	if !wrote {
		b.raw("1 = 1")
	}
	b.raw(")")
}
