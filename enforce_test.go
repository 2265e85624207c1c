package fieldgate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/fieldgate/fieldgate/query"
)

// stubSource is an in-memory PermissionSource for enforcement tests.
type stubSource struct {
	perms map[string]*TablePermissions
}

func (s *stubSource) GetSync(table string) (*TablePermissions, bool) {
	p, ok := s.perms[table]
	return p, ok
}

func (s *stubSource) Get(_ context.Context, table string, _ query.Querier) (*TablePermissions, error) {
	p, ok := s.perms[table]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", table, ErrNoPermissions)
	}
	return p, nil
}

func sourceWith(table string, op Operation, rules []Rule) *stubSource {
	return &stubSource{perms: map[string]*TablePermissions{
		table: {Operations: map[Operation][]Rule{op: rules}},
	}}
}

func TestEnforceNoDocument(t *testing.T) {
	e := testEvaluator(t)
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "ghosts",
		Operation: OpSelect,
		Source:    &stubSource{perms: map[string]*TablePermissions{}},
	})
	if res.Status {
		t.Fatal("missing document should deny")
	}
	if want := "no permissions defined for table ghosts"; res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}
}

func TestEnforceNoOperationRules(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpSelect, []Rule{{Allow: AllowPublic}})
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpDelete,
		Source:    src,
	})
	if res.Status {
		t.Fatal("undefined operation should deny")
	}
	if want := "no permissions defined for operation DELETE on table notes"; res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}
}

func TestEnforceEmptyRuleListAllows(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpSelect, []Rule{})
	rows := []Row{{"id": int64(1)}, {"id": int64(2)}}
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpSelect,
		Source:    src,
		Rows:      rows,
	})
	if !res.Status {
		t.Fatal("present-but-empty rule list is an open policy")
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows should pass through unfiltered, got %d", len(res.Rows))
	}
}

func TestEnforceSimpleRuleGrantsGlobally(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpSelect, []Rule{
		{Allow: AllowRole, Roles: []string{"admin"}},
		{Allow: AllowFieldCheck, FieldCheck: &FieldCheck{
			Field: "owner_id", Operator: FieldEquals, ValueType: SourceUserContext, Value: "userId",
		}},
	})
	rows := []Row{
		{"id": int64(1), "owner_id": "u1"},
		{"id": int64(2), "owner_id": "u2"},
	}
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpSelect,
		User:      &UserContext{UserID: "u9", Role: "admin"},
		Source:    src,
		Rows:      rows,
	})
	if !res.Status {
		t.Fatal("admin role should grant")
	}
	if len(res.Rows) != 2 {
		t.Fatalf("global grant should not filter rows, got %d", len(res.Rows))
	}
}

func TestEnforceFieldCheckFiltersRows(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpSelect, []Rule{
		{Allow: AllowFieldCheck, FieldCheck: &FieldCheck{
			Field: "owner_id", Operator: FieldEquals, ValueType: SourceUserContext, Value: "userId",
		}},
	})
	rows := []Row{
		{"id": int64(1), "owner_id": "u1"},
		{"id": int64(2), "owner_id": "u2"},
		{"id": int64(3), "owner_id": "u1"},
	}
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpSelect,
		User:      &UserContext{UserID: "u2"},
		Source:    src,
		Rows:      rows,
	})
	if !res.Status {
		t.Fatal("one surviving row should grant")
	}
	if len(res.Rows) != 1 || res.Rows[0]["id"] != int64(2) {
		t.Fatalf("expected exactly the owned row, got %v", res.Rows)
	}
}

func TestEnforceProbeCarriesClassification(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpUpdate, []Rule{
		{Allow: AllowRole, Roles: []string{"admin"}},
		{Allow: AllowCustomFunction, CustomFunction: "is_member"},
		{Allow: AllowFieldCheck, FieldCheck: &FieldCheck{
			Field: "owner_id", Operator: FieldEquals, ValueType: SourceUserContext, Value: "userId",
		}},
	})
	// Row-free probe by a non-admin: no decision yet, classification carried
	// so the caller can fetch rows and re-enter.
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpUpdate,
		User:      &UserContext{UserID: "u1", Role: "viewer"},
		Source:    src,
	})
	if res.Status {
		t.Fatal("probe should not grant without rows")
	}
	if !res.HasFieldCheck || !res.HasCustomFunction {
		t.Fatalf("classification flags not carried: %+v", res)
	}
	if len(res.FieldCheckRules) != 1 || len(res.CustomFunctionRules) != 1 {
		t.Fatalf("classified rule slices not carried: %+v", res)
	}
	if res.Message != "" {
		t.Fatalf("probe needing rows should not carry a denial message, got %q", res.Message)
	}
}

func TestEnforceDenialMessage(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpSelect, []Rule{
		{Allow: AllowRole, Roles: []string{"admin"}},
	})
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpSelect,
		User:      &UserContext{UserID: "u1", Role: "viewer"},
		Source:    src,
		Rows:      []Row{{"id": int64(1)}},
	})
	if res.Status {
		t.Fatal("viewer should be denied")
	}
	if want := "permission denied for operation SELECT on table notes"; res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}
}

func TestEnforceSingleRow(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpUpdate, []Rule{
		{Allow: AllowFieldCheck, FieldCheck: &FieldCheck{
			Field: "owner_id", Operator: FieldEquals, ValueType: SourceUserContext, Value: "userId",
		}},
	})
	owned := Row{"id": int64(1), "owner_id": "u1"}

	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpUpdate,
		User:      &UserContext{UserID: "u1"},
		Source:    src,
		Row:       owned,
	})
	if !res.Status || res.Row == nil {
		t.Fatalf("owner should pass single-row check: %+v", res)
	}

	res = e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpUpdate,
		User:      &UserContext{UserID: "u2"},
		Source:    src,
		Row:       owned,
	})
	if res.Status {
		t.Fatal("non-owner should fail single-row check")
	}
}

func TestEnforceChunkedFilteringPreservesOrder(t *testing.T) {
	e := testEvaluator(t)
	src := sourceWith("notes", OpSelect, []Rule{
		{Allow: AllowFieldCheck, FieldCheck: &FieldCheck{
			Field: "owner_id", Operator: FieldEquals, ValueType: SourceUserContext, Value: "userId",
		}},
	})

	// 2500 rows with the default chunk size of 1000 forces three chunks.
	rows := make([]Row, 2500)
	for i := range rows {
		owner := "u1"
		if i%3 == 0 {
			owner = "u2"
		}
		rows[i] = Row{"id": int64(i), "owner_id": owner}
	}
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "notes",
		Operation: OpSelect,
		User:      &UserContext{UserID: "u1"},
		Source:    src,
		Rows:      rows,
	})
	if !res.Status {
		t.Fatal("expected surviving rows")
	}
	want := 0
	for i := range rows {
		if i%3 != 0 {
			want++
		}
	}
	if len(res.Rows) != want {
		t.Fatalf("got %d rows, want %d", len(res.Rows), want)
	}
	last := int64(-1)
	for _, row := range res.Rows {
		id := row["id"].(int64)
		if id <= last {
			t.Fatalf("row order not preserved: %d after %d", id, last)
		}
		last = id
	}
}

func TestEnforceCustomFunctionFilters(t *testing.T) {
	e := testEvaluator(t)
	e.Funcs().Register("same_team", func(_ context.Context, user *UserContext, row Row, _ query.Querier) (bool, error) {
		team, _ := row["team"].(string)
		return user != nil && strings.Contains(strings.Join(user.Teams, ","), team) && team != "", nil
	})
	src := sourceWith("docs", OpSelect, []Rule{
		{Allow: AllowCustomFunction, CustomFunction: "same_team"},
	})
	rows := []Row{
		{"id": int64(1), "team": "t1"},
		{"id": int64(2), "team": "t2"},
	}
	res := e.Enforce(context.Background(), &EnforceInput{
		Table:     "docs",
		Operation: OpSelect,
		User:      &UserContext{UserID: "u1", Teams: []string{"t1"}},
		Source:    src,
		Rows:      rows,
	})
	if !res.Status || len(res.Rows) != 1 || res.Rows[0]["id"] != int64(1) {
		t.Fatalf("expected only the t1 row, got %+v", res)
	}
}
