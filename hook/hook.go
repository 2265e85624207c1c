// Package hook defines the query/mutation interception pipeline.
// Hooks are notified synchronously around raw query and mutation
// execution; realtime broadcast, metrics, and tracing hang off this.
//
// Each lifecycle point is a separate interface so hooks opt in only to
// the events they care about. Hooks run in registration order; a hook
// error is logged and never blocks the operation.
package hook

import (
	"context"

	"github.com/fieldgate/fieldgate/query"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// QueryEvent describes one read about to run or just finished.
type QueryEvent struct {
	Table string
	SQL   string
	Args  []any

	// Rows is the scanned result set, set on after-query only.
	Rows []query.Row

	// Elapsed is the execution duration in nanoseconds, set on
	// after-query only.
	ElapsedNs int64
}

// MutationEvent describes one write about to run or just finished.
type MutationEvent struct {
	Table string

	// Operation is INSERT, UPDATE, or DELETE.
	Operation string

	SQL  string
	Args []any

	// Rows carries the affected rows when the engine returns them.
	Rows []query.Row

	// Affected is the driver-reported affected row count.
	Affected int64

	ElapsedNs int64
}

// BeforeQuery is called before a read executes.
type BeforeQuery interface {
	OnBeforeQuery(ctx context.Context, ev *QueryEvent) error
}

// AfterQuery is called after a read completes successfully.
type AfterQuery interface {
	OnAfterQuery(ctx context.Context, ev *QueryEvent) error
}

// BeforeMutation is called before a write executes.
type BeforeMutation interface {
	OnBeforeMutation(ctx context.Context, ev *MutationEvent) error
}

// AfterMutation is called after a write completes successfully.
type AfterMutation interface {
	OnAfterMutation(ctx context.Context, ev *MutationEvent) error
}

// OnError is called when a query or mutation fails. The event is a
// *QueryEvent or *MutationEvent.
type OnError interface {
	OnError(ctx context.Context, ev any, err error)
}
