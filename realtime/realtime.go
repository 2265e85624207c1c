// Package realtime provides the change-broadcast adapters: a WebSocket
// hub and a Server-Sent-Events hub, both gated by the same table
// permissions that guard reads.
//
// Subscription eligibility is coarse-grained on both transports: the
// table's SELECT rules, with fieldCheck rules stripped, must grant the
// connecting user on an empty row. Payload filtering differs by
// transport: the WebSocket hub re-evaluates the full SELECT rules per
// client per row before sending, while the SSE hub publishes the same
// unfiltered payload to every gated subscriber. That asymmetry is
// inherited from the original system and kept deliberately.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/query"
)

// ChangeMessage is the wire format pushed to subscribers on both
// transports.
type ChangeMessage struct {
	Type  string      `json:"type"`
	Table string      `json:"table"`
	Event string      `json:"event"`
	Rows  []query.Row `json:"rows"`
	At    time.Time   `json:"at"`
}

func newChange(table, event string, rows []query.Row) *ChangeMessage {
	return &ChangeMessage{
		Type:  "change",
		Table: table,
		Event: event,
		Rows:  rows,
		At:    time.Now().UTC(),
	}
}

func (m *ChangeMessage) encode() ([]byte, error) {
	return json.Marshal(m)
}

// canSubscribe runs the subscription gate: SELECT rules with fieldCheck
// rules stripped, evaluated against an empty row. An explicit empty rule
// list is an open policy and admits everyone; a missing document or
// missing SELECT rules deny.
func canSubscribe(ctx context.Context, db *fieldgate.Database, table string, user *fieldgate.UserContext) bool {
	if excludedTable(db, table) {
		return false
	}
	perms, err := db.Permissions().Get(ctx, table, nil)
	if err != nil || perms == nil {
		return false
	}
	rules, defined := perms.Rules(fieldgate.OpSelect)
	if !defined {
		return false
	}
	if len(rules) == 0 {
		return true
	}
	stripped := fieldgate.StripFieldChecks(rules)
	return db.Evaluator().Evaluate(ctx, stripped, user, fieldgate.Row{}, db.DB())
}

func excludedTable(db *fieldgate.Database, table string) bool {
	if table == fieldgate.MetaTable {
		return true
	}
	for _, t := range db.Config().ExcludedTables {
		if t == table {
			return true
		}
	}
	return false
}

// selectRules returns the table's full SELECT rule list for per-row
// payload filtering. The second return is false when no document or no
// SELECT rules exist.
func selectRules(ctx context.Context, db *fieldgate.Database, table string) ([]fieldgate.Rule, bool) {
	perms, err := db.Permissions().Get(ctx, table, nil)
	if err != nil || perms == nil {
		return nil, false
	}
	return perms.Rules(fieldgate.OpSelect)
}

// Multi fans a broadcast out to several broadcasters, so WebSocket and
// SSE hubs can both hang off one Database.
type Multi []fieldgate.Broadcaster

// Broadcast implements fieldgate.Broadcaster.
func (m Multi) Broadcast(ctx context.Context, table, event string, rows []query.Row) {
	for _, b := range m {
		b.Broadcast(ctx, table, event, rows)
	}
}
