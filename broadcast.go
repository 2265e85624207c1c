package fieldgate

import (
	"context"

	"github.com/fieldgate/fieldgate/query"
)

// Change events emitted after successful mutations.
const (
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Broadcaster receives post-mutation change notifications. Realtime
// hubs implement it; the orchestrator calls it after every successful
// create, update, and delete with the affected rows.
//
// Broadcast must not block the mutation path for long; implementations
// are expected to hand the payload off to their own fan-out machinery.
type Broadcaster interface {
	Broadcast(ctx context.Context, table, event string, rows []query.Row)
}
