package fieldgate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/fieldgate/fieldgate/query"
)

// Evaluator decides allow/deny for rule lists. Rule lists carry OR
// semantics: rules are tried in order and the first decisive rule wins.
// public, private, and static are terminal; every other variant either
// grants or falls through to the next rule. Evaluation never returns an
// error: broken rules (bad SQL, throwing functions, missing registry
// entries) are logged and treated as not granting, so a misconfigured
// rule can never accidentally open access.
type Evaluator struct {
	funcs  *FuncRegistry
	logger *slog.Logger
}

// NewEvaluator creates an evaluator backed by the given function
// registry. Nil arguments fall back to an empty registry and
// slog.Default().
func NewEvaluator(funcs *FuncRegistry, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if funcs == nil {
		funcs = NewFuncRegistry(logger)
	}
	return &Evaluator{funcs: funcs, logger: logger}
}

// Funcs returns the evaluator's function registry.
func (e *Evaluator) Funcs() *FuncRegistry { return e.funcs }

// Evaluate runs rules in order against the user and row. Row may be
// empty for row-independent checks; db is required only by customSql
// and customFunction rules and may be nil otherwise.
func (e *Evaluator) Evaluate(ctx context.Context, rules []Rule, user *UserContext, row Row, db query.Querier) bool {
	for _, r := range rules {
		granted, decided := e.evalRule(ctx, r, user, row, db)
		if decided {
			return granted
		}
	}
	return false
}

// EvaluateFieldChecks is the fast path for rule lists already known to
// contain only fieldCheck rules, short-circuiting on the first grant.
// It exists so fetch-then-filter callers can reuse the classification
// carried in an EnforcementResult instead of re-deriving it per row.
func (e *Evaluator) EvaluateFieldChecks(ctx context.Context, rules []Rule, user *UserContext, row Row) bool {
	for _, r := range rules {
		if granted, _ := e.evalRule(ctx, r, user, row, nil); granted {
			return true
		}
	}
	return false
}

// evalRule evaluates one rule. decided=false means the rule was
// inapplicable or non-matching and evaluation falls through.
func (e *Evaluator) evalRule(ctx context.Context, r Rule, user *UserContext, row Row, db query.Querier) (granted, decided bool) {
	switch r.Allow {
	case AllowPublic:
		return true, true

	case AllowPrivate:
		return false, true

	case AllowStatic:
		if r.Static == nil {
			return false, false
		}
		return *r.Static, true

	case AllowAuth:
		if user.Authenticated() {
			return true, true
		}
		return false, false

	case AllowGuest:
		if !user.Authenticated() {
			return true, true
		}
		return false, false

	case AllowRole:
		// An empty role list never matches; it is not an error.
		if len(r.Roles) == 0 || user == nil || user.Role == "" {
			return false, false
		}
		for _, role := range r.Roles {
			if role == user.Role {
				return true, true
			}
		}
		return false, false

	case AllowLabels:
		if user != nil && intersects(user.Labels, r.Labels) {
			return true, true
		}
		return false, false

	case AllowTeams:
		if user != nil && intersects(user.Teams, r.Teams) {
			return true, true
		}
		return false, false

	case AllowFieldCheck:
		if r.FieldCheck == nil {
			return false, false
		}
		if e.matchFieldCheck(*r.FieldCheck, user, row) {
			return true, true
		}
		return false, false

	case AllowCustomSQL:
		if e.matchCustomSQL(ctx, r.CustomSQL, user, db) {
			return true, true
		}
		return false, false

	case AllowCustomFunction:
		if e.matchCustomFunction(ctx, r.CustomFunction, user, row, db) {
			return true, true
		}
		return false, false
	}

	// Unknown variant: inapplicable, fall through.
	return false, false
}

func (e *Evaluator) matchFieldCheck(fc FieldCheck, user *UserContext, row Row) bool {
	if fc.Field == "" {
		return false
	}
	var comparison any
	switch fc.ValueType {
	case SourceUserContext:
		name, ok := fc.Value.(string)
		if !ok {
			return false
		}
		v, ok := user.Field(name)
		if !ok {
			return false
		}
		comparison = v
	case SourceStatic:
		comparison = fc.Value
	default:
		return false
	}

	rowValue, ok := row[fc.Field]
	if !ok {
		return false
	}

	switch fc.Operator {
	case FieldEquals:
		return valuesEqual(rowValue, comparison)
	case FieldNotEquals:
		return !valuesEqual(rowValue, comparison)
	case FieldIn:
		return valueIn(rowValue, comparison)
	case FieldNotIn:
		return !valueIn(rowValue, comparison)
	}
	return false
}

func (e *Evaluator) matchCustomSQL(ctx context.Context, template string, user *UserContext, db query.Querier) bool {
	if template == "" || db == nil {
		return false
	}
	stmt, err := substituteContextTokens(template, user)
	if err != nil {
		e.logger.Warn("fieldgate: rule evaluation error", "rule", "customSql", "error", err)
		return false
	}
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		e.logger.Warn("fieldgate: rule evaluation error", "rule", "customSql", "error", err)
		return false
	}
	defer rows.Close()
	granted := rows.Next()
	if err := rows.Err(); err != nil {
		e.logger.Warn("fieldgate: rule evaluation error", "rule", "customSql", "error", err)
		return false
	}
	return granted
}

func (e *Evaluator) matchCustomFunction(ctx context.Context, name string, user *UserContext, row Row, db query.Querier) bool {
	fn, err := e.funcs.Lookup(name)
	if err != nil {
		e.logger.Warn("fieldgate: rule evaluation error", "rule", "customFunction", "error", err)
		return false
	}
	granted, err := fn(ctx, user, row, db)
	if err != nil {
		e.logger.Warn("fieldgate: rule evaluation error", "rule", "customFunction", "name", name, "error", err)
		return false
	}
	return granted
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// valuesEqual compares two scanned/context values with explicit typed
// rules: nil only equals nil, numerics compare across widths, everything
// else compares by type then value.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func valueIn(v, list any) bool {
	switch vals := list.(type) {
	case []any:
		for _, item := range vals {
			if valuesEqual(v, item) {
				return true
			}
		}
	case []string:
		for _, item := range vals {
			if valuesEqual(v, item) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// sqlTokenRe matches :name substitution tokens. The leading group skips
// over "::" so Postgres casts pass through untouched.
var sqlTokenRe = regexp.MustCompile(`(::[a-zA-Z_][a-zA-Z0-9_]*)|:([a-zA-Z_][a-zA-Z0-9_]*)`)

// substituteContextTokens replaces :field tokens in a customSql template
// with escaped UserContext values. This is the single, deliberately
// narrow interpolation surface in the system: only UserContext fields
// are reachable and every value goes through typed escaping.
func substituteContextTokens(template string, user *UserContext) (string, error) {
	var substErr error
	out := sqlTokenRe.ReplaceAllStringFunc(template, func(match string) string {
		if strings.HasPrefix(match, "::") {
			return match
		}
		name := match[1:]
		v, ok := user.Field(name)
		if !ok {
			if substErr == nil {
				substErr = fmt.Errorf("fieldgate: unknown context field %q in customSql", name)
			}
			return match
		}
		lit, err := sqlLiteral(v)
		if err != nil {
			if substErr == nil {
				substErr = err
			}
			return match
		}
		return lit
	})
	if substErr != nil {
		return "", substErr
	}
	return out, nil
}

func sqlLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case []string:
		if len(x) == 0 {
			return "(NULL)", nil
		}
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = "'" + strings.ReplaceAll(s, "'", "''") + "'"
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	case []any:
		if len(x) == 0 {
			return "(NULL)", nil
		}
		parts := make([]string, len(x))
		for i, item := range x {
			lit, err := sqlLiteral(item)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	default:
		return "", fmt.Errorf("fieldgate: unsupported customSql value type %T", v)
	}
}
