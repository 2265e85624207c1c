// Package fieldgate provides a generic CRUD data layer over a relational
// store with declarative, rule-based row-level security (RLS).
//
// Every table carries a permission document: an ordered list of rules per
// operation (SELECT, INSERT, UPDATE, DELETE). Rules are evaluated first
// match wins; row-independent rules are checked before any row is fetched,
// and row-dependent rules (field checks, custom functions) filter fetched
// rows per row. Permission documents live in a reserved metadata table and
// are served through a TTL+LRU cache.
//
//	store := permissions.NewService(permissions.NewSQLStore(adapter), sqlDB)
//	db, err := fieldgate.NewDatabase(
//	    fieldgate.WithDB(sqlDB),
//	    fieldgate.WithDialect(dialect.Postgres),
//	    fieldgate.WithPermissions(store),
//	)
//	rows, err := db.Query(ctx, &fieldgate.QueryRequest{
//	    Table:  "posts",
//	    Params: &query.Params{Filter: map[string]any{"published": true}},
//	    User:   &fieldgate.UserContext{UserID: "user_123"},
//	})
package fieldgate

import "github.com/fieldgate/fieldgate/query"

// Operation identifies a data operation guarded by table permissions.
type Operation string

const (
	// OpSelect guards reads (query and realtime subscriptions).
	OpSelect Operation = "SELECT"

	// OpInsert guards row creation.
	OpInsert Operation = "INSERT"

	// OpUpdate guards row modification.
	OpUpdate Operation = "UPDATE"

	// OpDelete guards row removal.
	OpDelete Operation = "DELETE"
)

// Operations lists all guarded operations in evaluation order.
var Operations = []Operation{OpSelect, OpInsert, OpUpdate, OpDelete}

// Row is a single table row keyed by column name. Values are restricted to
// the closed set produced by the query scanner: string, int64, float64,
// bool, time.Time, and nil.
type Row = query.Row

// UserContext is the already-authenticated identity an operation runs as.
// It is supplied by the caller per request, never persisted, and treated
// as immutable during rule evaluation.
type UserContext struct {
	// UserID is the caller's identity. String and integer IDs are both
	// accepted; a zero value ("" / 0 / nil) means unauthenticated.
	UserID any `json:"userId"`

	// Labels are arbitrary tags attached to the user.
	Labels []string `json:"labels,omitempty"`

	// Teams are the team identifiers the user belongs to.
	Teams []string `json:"teams,omitempty"`

	// Role is the user's single role, if any.
	Role string `json:"role,omitempty"`

	// Permissions are free-form permission strings, if the caller's auth
	// system issues them. Unused by built-in rules but reachable from
	// fieldCheck and customSql rules.
	Permissions []string `json:"permissions,omitempty"`
}

// Authenticated reports whether the context carries a non-zero user ID.
func (u *UserContext) Authenticated() bool {
	if u == nil {
		return false
	}
	switch v := u.UserID.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

// Field resolves a named UserContext field for fieldCheck and customSql
// rules. Recognized names: userId, role, labels, teams, permissions.
func (u *UserContext) Field(name string) (any, bool) {
	if u == nil {
		return nil, false
	}
	switch name {
	case "userId", "userID", "user_id":
		return u.UserID, true
	case "role":
		return u.Role, true
	case "labels":
		return u.Labels, true
	case "teams":
		return u.Teams, true
	case "permissions":
		return u.Permissions, true
	}
	return nil, false
}
