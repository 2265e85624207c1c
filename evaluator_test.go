package fieldgate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fieldgate/fieldgate/query"
)

func testEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvaluator(NewFuncRegistry(logger), logger)
}

func boolPtr(v bool) *bool { return &v }

func TestEvaluatePublicShortCircuits(t *testing.T) {
	e := testEvaluator(t)
	rules := []Rule{
		{Allow: AllowPublic},
		{Allow: AllowPrivate},
	}
	if !e.Evaluate(context.Background(), rules, nil, Row{}, nil) {
		t.Fatal("public rule should grant regardless of later rules")
	}
}

func TestEvaluatePrivateTerminal(t *testing.T) {
	e := testEvaluator(t)
	rules := []Rule{
		{Allow: AllowPrivate},
		{Allow: AllowPublic},
	}
	user := &UserContext{UserID: "u1", Role: "admin"}
	if e.Evaluate(context.Background(), rules, user, Row{}, nil) {
		t.Fatal("private rule should deny and stop evaluation")
	}
}

func TestEvaluateStatic(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()

	if !e.Evaluate(ctx, []Rule{{Allow: AllowStatic, Static: boolPtr(true)}}, nil, Row{}, nil) {
		t.Fatal("static true should grant")
	}
	// Static false is terminal, so the trailing public rule is unreachable.
	rules := []Rule{
		{Allow: AllowStatic, Static: boolPtr(false)},
		{Allow: AllowPublic},
	}
	if e.Evaluate(ctx, rules, nil, Row{}, nil) {
		t.Fatal("static false should deny and stop evaluation")
	}
	// A static rule with no value is inapplicable and falls through.
	rules = []Rule{
		{Allow: AllowStatic},
		{Allow: AllowPublic},
	}
	if !e.Evaluate(ctx, rules, nil, Row{}, nil) {
		t.Fatal("static rule without a value should fall through")
	}
}

func TestEvaluateRole(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()
	rules := []Rule{{Allow: AllowRole, Roles: []string{"admin", "editor"}}}

	if !e.Evaluate(ctx, rules, &UserContext{UserID: "u1", Role: "admin"}, Row{}, nil) {
		t.Fatal("matching role should grant")
	}
	if e.Evaluate(ctx, rules, &UserContext{UserID: "u2", Role: "viewer"}, Row{}, nil) {
		t.Fatal("non-matching role should deny")
	}
	if e.Evaluate(ctx, rules, nil, Row{}, nil) {
		t.Fatal("nil user should not match a role rule")
	}
	// A non-matching role rule falls through to later rules.
	fallthroughRules := append(rules, Rule{Allow: AllowPublic})
	if !e.Evaluate(ctx, fallthroughRules, &UserContext{UserID: "u2", Role: "viewer"}, Row{}, nil) {
		t.Fatal("non-matching role should fall through to later rules")
	}
}

func TestEvaluateAuthAndGuest(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()

	auth := []Rule{{Allow: AllowAuth}}
	if !e.Evaluate(ctx, auth, &UserContext{UserID: "u1"}, Row{}, nil) {
		t.Fatal("authenticated user should pass auth rule")
	}
	if e.Evaluate(ctx, auth, &UserContext{UserID: ""}, Row{}, nil) {
		t.Fatal("zero user ID should not pass auth rule")
	}
	if e.Evaluate(ctx, auth, nil, Row{}, nil) {
		t.Fatal("nil user should not pass auth rule")
	}

	guest := []Rule{{Allow: AllowGuest}}
	if !e.Evaluate(ctx, guest, nil, Row{}, nil) {
		t.Fatal("nil user should pass guest rule")
	}
	if e.Evaluate(ctx, guest, &UserContext{UserID: int64(42)}, Row{}, nil) {
		t.Fatal("authenticated user should not pass guest rule")
	}
}

func TestEvaluateLabelsAndTeams(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()
	user := &UserContext{
		UserID: "u1",
		Labels: []string{"beta", "internal"},
		Teams:  []string{"t1"},
	}

	if !e.Evaluate(ctx, []Rule{{Allow: AllowLabels, Labels: []string{"internal"}}}, user, Row{}, nil) {
		t.Fatal("overlapping labels should grant")
	}
	if e.Evaluate(ctx, []Rule{{Allow: AllowLabels, Labels: []string{"external"}}}, user, Row{}, nil) {
		t.Fatal("disjoint labels should deny")
	}
	if !e.Evaluate(ctx, []Rule{{Allow: AllowTeams, Teams: []string{"t1", "t9"}}}, user, Row{}, nil) {
		t.Fatal("overlapping teams should grant")
	}
	if e.Evaluate(ctx, []Rule{{Allow: AllowTeams, Teams: []string{}}}, user, Row{}, nil) {
		t.Fatal("empty team list should never match")
	}
}

func TestEvaluateFieldCheckOwner(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()
	rules := []Rule{{
		Allow: AllowFieldCheck,
		FieldCheck: &FieldCheck{
			Field:     "owner_id",
			Operator:  FieldEquals,
			ValueType: SourceUserContext,
			Value:     "userId",
		},
	}}

	owner := &UserContext{UserID: "u1"}
	other := &UserContext{UserID: "u2"}
	row := Row{"id": int64(1), "owner_id": "u1"}

	if !e.Evaluate(ctx, rules, owner, row, nil) {
		t.Fatal("owner should see own row")
	}
	if e.Evaluate(ctx, rules, other, row, nil) {
		t.Fatal("non-owner should not see row")
	}
	// A missing row field is inapplicable, not a deny: a later rule can
	// still grant.
	withFallback := append(rules, Rule{Allow: AllowRole, Roles: []string{"admin"}})
	admin := &UserContext{UserID: "u3", Role: "admin"}
	if !e.Evaluate(ctx, withFallback, admin, Row{"id": int64(2)}, nil) {
		t.Fatal("missing row field should fall through to later rules")
	}
}

func TestEvaluateFieldCheckOperators(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()
	row := Row{"status": "draft", "count": int64(3)}

	cases := []struct {
		name string
		fc   FieldCheck
		want bool
	}{
		{"not equals matches", FieldCheck{Field: "status", Operator: FieldNotEquals, ValueType: SourceStatic, Value: "published"}, true},
		{"not equals rejects", FieldCheck{Field: "status", Operator: FieldNotEquals, ValueType: SourceStatic, Value: "draft"}, false},
		{"in matches", FieldCheck{Field: "status", Operator: FieldIn, ValueType: SourceStatic, Value: []any{"draft", "review"}}, true},
		{"in rejects", FieldCheck{Field: "status", Operator: FieldIn, ValueType: SourceStatic, Value: []any{"published"}}, false},
		{"notIn matches", FieldCheck{Field: "status", Operator: FieldNotIn, ValueType: SourceStatic, Value: []string{"published"}}, true},
		{"numeric cross-width equals", FieldCheck{Field: "count", Operator: FieldEquals, ValueType: SourceStatic, Value: 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := tc.fc
			got := e.Evaluate(ctx, []Rule{{Allow: AllowFieldCheck, FieldCheck: &fc}}, nil, row, nil)
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateCustomSQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	e := testEvaluator(t)
	ctx := context.Background()
	rules := []Rule{{
		Allow:     AllowCustomSQL,
		CustomSQL: "SELECT 1 FROM project_members WHERE user_id = :userId",
	}}

	mock.ExpectQuery("SELECT 1 FROM project_members WHERE user_id = 'u1'").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if !e.Evaluate(ctx, rules, &UserContext{UserID: "u1"}, Row{}, db) {
		t.Fatal("customSql returning a row should grant")
	}

	mock.ExpectQuery("SELECT 1 FROM project_members WHERE user_id = 'u2'").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	if e.Evaluate(ctx, rules, &UserContext{UserID: "u2"}, Row{}, db) {
		t.Fatal("customSql returning no rows should deny")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEvaluateCustomSQLFailsClosed(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	e := testEvaluator(t)
	ctx := context.Background()
	user := &UserContext{UserID: "u1"}

	mock.ExpectQuery("SELECT 1 FROM broken WHERE user_id = 'u1'").
		WillReturnError(errors.New("relation does not exist"))
	rules := []Rule{{Allow: AllowCustomSQL, CustomSQL: "SELECT 1 FROM broken WHERE user_id = :userId"}}
	if e.Evaluate(ctx, rules, user, Row{}, db) {
		t.Fatal("query error should fail closed")
	}

	// Unknown token: error before the query is issued.
	rules = []Rule{{Allow: AllowCustomSQL, CustomSQL: "SELECT 1 WHERE x = :nope"}}
	if e.Evaluate(ctx, rules, user, Row{}, db) {
		t.Fatal("unknown context field should fail closed")
	}

	// No database handle at all.
	rules = []Rule{{Allow: AllowCustomSQL, CustomSQL: "SELECT 1"}}
	if e.Evaluate(ctx, rules, user, Row{}, nil) {
		t.Fatal("nil handle should fail closed")
	}
}

func TestEvaluateCustomFunction(t *testing.T) {
	e := testEvaluator(t)
	ctx := context.Background()

	e.Funcs().Register("is_owner", func(_ context.Context, user *UserContext, row Row, _ query.Querier) (bool, error) {
		return user != nil && valuesEqual(row["owner_id"], user.UserID), nil
	})
	e.Funcs().Register("always_errors", func(context.Context, *UserContext, Row, query.Querier) (bool, error) {
		return true, errors.New("boom")
	})

	rules := []Rule{{Allow: AllowCustomFunction, CustomFunction: "is_owner"}}
	row := Row{"owner_id": "u1"}
	if !e.Evaluate(ctx, rules, &UserContext{UserID: "u1"}, row, nil) {
		t.Fatal("granting function should grant")
	}
	if e.Evaluate(ctx, rules, &UserContext{UserID: "u2"}, row, nil) {
		t.Fatal("denying function should deny")
	}

	// A function error fails closed for that rule but does not poison the
	// rest of the list.
	erroring := []Rule{
		{Allow: AllowCustomFunction, CustomFunction: "always_errors"},
		{Allow: AllowPublic},
	}
	if !e.Evaluate(ctx, erroring, nil, Row{}, nil) {
		t.Fatal("erroring function should fall through to later rules")
	}
	if e.Evaluate(ctx, erroring[:1], nil, Row{}, nil) {
		t.Fatal("erroring function alone should deny")
	}

	// Unregistered name: fail closed.
	missing := []Rule{{Allow: AllowCustomFunction, CustomFunction: "no_such_fn"}}
	if e.Evaluate(ctx, missing, nil, Row{}, nil) {
		t.Fatal("missing function should deny")
	}
}

func TestEvaluateFieldChecksFastPath(t *testing.T) {
	e := testEvaluator(t)
	rules := []Rule{
		{Allow: AllowFieldCheck, FieldCheck: &FieldCheck{Field: "team", Operator: FieldEquals, ValueType: SourceStatic, Value: "t1"}},
		{Allow: AllowFieldCheck, FieldCheck: &FieldCheck{Field: "owner_id", Operator: FieldEquals, ValueType: SourceUserContext, Value: "userId"}},
	}
	user := &UserContext{UserID: "u1"}

	if !e.EvaluateFieldChecks(context.Background(), rules, user, Row{"owner_id": "u1", "team": "t9"}) {
		t.Fatal("second field check should grant")
	}
	if e.EvaluateFieldChecks(context.Background(), rules, user, Row{"owner_id": "u2", "team": "t9"}) {
		t.Fatal("no matching field check should deny")
	}
}

func TestSubstituteContextTokens(t *testing.T) {
	user := &UserContext{
		UserID: "o'brien",
		Role:   "editor",
		Labels: []string{"a", "b"},
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{"string escaping", "SELECT 1 WHERE owner = :userId", "SELECT 1 WHERE owner = 'o''brien'"},
		{"multiple tokens", "SELECT 1 WHERE r = :role AND o = :userId", "SELECT 1 WHERE r = 'editor' AND o = 'o''brien'"},
		{"list rendering", "SELECT 1 WHERE label IN :labels", "SELECT 1 WHERE label IN ('a', 'b')"},
		{"cast passthrough", "SELECT id::text FROM t WHERE r = :role", "SELECT id::text FROM t WHERE r = 'editor'"},
		{"no tokens", "SELECT 1", "SELECT 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := substituteContextTokens(tc.template, user)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := substituteContextTokens("SELECT 1 WHERE x = :missing", user); err == nil {
		t.Fatal("unknown field should error")
	}
}

func TestSQLLiteral(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"plain", "'plain'"},
		{"it's", "'it''s'"},
		{true, "TRUE"},
		{false, "FALSE"},
		{42, "42"},
		{int64(9000000000), "9000000000"},
		{1.5, "1.5"},
		{[]string{}, "(NULL)"},
		{[]string{"x", "y"}, "('x', 'y')"},
		{[]any{1, "two"}, "(1, 'two')"},
	}
	for _, tc := range cases {
		got, err := sqlLiteral(tc.in)
		if err != nil {
			t.Fatalf("sqlLiteral(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sqlLiteral(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := sqlLiteral(struct{}{}); err == nil {
		t.Fatal("unsupported type should error")
	}
}
