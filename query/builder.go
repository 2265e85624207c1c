package query

import (
	"strings"

	"github.com/fieldgate/fieldgate/dialect"
)

// builder accumulates a SQL string and its bound arguments, delegating
// identifier quoting and placeholder style to the dialect adapter.
type builder struct {
	adapter dialect.Adapter
	sb      strings.Builder
	args    []any
	err     error
}

func newBuilder(a dialect.Adapter) *builder {
	return &builder{adapter: a}
}

func (b *builder) raw(s string) *builder {
	if b.err == nil {
		b.sb.WriteString(s)
	}
	return b
}

func (b *builder) ident(name string) *builder {
	if b.err != nil {
		return b
	}
	q, err := b.adapter.QuoteIdent(name)
	if err != nil {
		b.err = err
		return b
	}
	b.sb.WriteString(q)
	return b
}

// arg binds one value and writes its placeholder.
func (b *builder) arg(v any) *builder {
	if b.err != nil {
		return b
	}
	b.args = append(b.args, v)
	b.sb.WriteString(b.adapter.Placeholder(len(b.args)))
	return b
}

// argList binds values and writes "(p1, p2, ...)".
func (b *builder) argList(vals []any) *builder {
	b.raw("(")
	for i, v := range vals {
		if i > 0 {
			b.raw(", ")
		}
		b.arg(v)
	}
	return b.raw(")")
}

func (b *builder) build() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	return b.sb.String(), b.args, nil
}
