// Package remote abstracts the remote store boundary: keyed upserts,
// soft-delete flag updates, bulk fetches, a realtime push feed and a
// reachability probe.
package remote

import (
	"context"
	"encoding/json"
	"time"
)

// Event types delivered by the realtime feed. Deletes arrive as updates
// carrying the soft-delete flag, never as a distinct message type.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one realtime change notification for a table row.
type Event struct {
	Type  string          `json:"event"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new_record"`
	Old   json.RawMessage `json:"old_record"`
}

// EventHandler consumes realtime events for one table.
type EventHandler func(Event)

// Store is the remote store contract. Upsert must be idempotent under the
// given conflict key: re-sending an already applied row changes nothing.
type Store interface {
	// Upsert writes rows (any JSON-serializable slice) keyed by conflictKey.
	Upsert(ctx context.Context, table, conflictKey string, rows any) error

	// SoftDelete flags the rows matching keys as deleted at the given time.
	SoftDelete(ctx context.Context, table, conflictKey string, keys []string, at time.Time) error

	// FetchAll returns every row of the table for bulk reconciliation.
	FetchAll(ctx context.Context, table string) ([]json.RawMessage, error)

	// Subscribe delivers realtime events for the table until the returned
	// cancel func is called or ctx is done.
	Subscribe(ctx context.Context, table string, h EventHandler) (func(), error)

	// Ping probes endpoint reachability without touching data.
	Ping(ctx context.Context) error
}
