// Package merge reconciles remote data with the local working set using
// last-write-wins on the record modification timestamp. The same rule serves
// both single realtime events and full bulk reloads.
package merge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"tidesync/internal/adapters"
	"tidesync/internal/models"
	"tidesync/internal/oplog"
	"tidesync/internal/remote"
)

// reimportable marks the kinds refreshed by external bulk re-imports. For
// these, a local-only record that is absent from both the remote set and the
// operation log was deleted elsewhere and is pruned during reconciliation.
var reimportable = map[models.EntityType]bool{
	models.EntityProduct: true,
	models.EntityDrop:    true,
}

// Resolver applies LWW merges into the local store.
type Resolver struct {
	local    LocalStore
	adapters map[models.EntityType]adapters.Adapter
	log      *oplog.Log
	logger   zerolog.Logger
}

func NewResolver(local LocalStore, log *oplog.Log, logger zerolog.Logger) *Resolver {
	return &Resolver{
		local:    local,
		adapters: adapters.All(),
		log:      log,
		logger:   logger.With().Str("component", "merge").Logger(),
	}
}

// Newer reports whether incoming strictly beats existing under LWW. Ties keep
// the existing record so an echo of our own write never causes a redundant
// update.
func Newer(incoming, existing models.Record) bool {
	return incoming.ModifiedAt().After(existing.ModifiedAt())
}

// ApplyEvent merges one realtime event. A record arriving with the
// soft-delete flag set removes the local copy; there is no separate delete
// message type.
func (r *Resolver) ApplyEvent(kind models.EntityType, ev remote.Event) error {
	if len(ev.New) == 0 {
		return nil
	}
	adapter, ok := r.adapters[kind]
	if !ok {
		return fmt.Errorf("no adapter for %s", kind)
	}

	incoming, err := adapter.FromRemote(ev.New)
	if err != nil {
		return fmt.Errorf("merge %s event: %w", kind, err)
	}

	if existing, ok := r.local.Get(kind, incoming.RecordID()); ok && !Newer(incoming, existing) {
		return nil
	}

	if incoming.IsDeleted() {
		r.local.Delete(kind, incoming.RecordID())
		r.logger.Debug().Str("entity", string(kind)).Str("id", incoming.RecordID()).Msg("record soft-deleted by remote")
		return nil
	}

	r.local.Put(kind, incoming)
	return nil
}

// Reconcile runs the pairwise LWW across the full remote set and the full
// local set of one kind: remote-only records are added, conflicts keep the
// newer side, and local-only records survive unless the kind is reimportable
// and the record has no pending operation, in which case it is an orphan.
func (r *Resolver) Reconcile(_ context.Context, kind models.EntityType, rows []json.RawMessage) error {
	adapter, ok := r.adapters[kind]
	if !ok {
		return fmt.Errorf("no adapter for %s", kind)
	}

	remoteByID := make(map[string]models.Record, len(rows))
	for _, raw := range rows {
		rec, err := adapter.FromRemote(raw)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", kind, err)
		}
		remoteByID[rec.RecordID()] = rec
	}

	for id, incoming := range remoteByID {
		existing, ok := r.local.Get(kind, id)
		if ok && !Newer(incoming, existing) {
			continue
		}
		if incoming.IsDeleted() {
			r.local.Delete(kind, id)
			continue
		}
		r.local.Put(kind, incoming)
	}

	if !reimportable[kind] {
		return nil
	}

	pending := r.log.PendingRecordIDs(kind)
	for _, rec := range r.local.All(kind) {
		id := rec.RecordID()
		if _, inRemote := remoteByID[id]; inRemote {
			continue
		}
		if _, queued := pending[id]; queued {
			continue
		}
		r.local.Delete(kind, id)
		r.logger.Info().Str("entity", string(kind)).Str("id", id).Msg("orphan record pruned")
	}

	return nil
}
