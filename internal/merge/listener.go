package merge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tidesync/internal/adapters"
	"tidesync/internal/models"
	"tidesync/internal/remote"
)

// Listener holds one realtime subscription per entity kind and routes events
// through the resolver.
type Listener struct {
	store    remote.Store
	resolver *Resolver
	cancels  []func()
	logger   zerolog.Logger
}

func NewListener(store remote.Store, resolver *Resolver, logger zerolog.Logger) *Listener {
	return &Listener{
		store:    store,
		resolver: resolver,
		logger:   logger.With().Str("component", "realtime").Logger(),
	}
}

// Start subscribes every entity kind. A failed subscription tears down the
// ones already opened.
func (l *Listener) Start(ctx context.Context) error {
	for kind, adapter := range adapters.All() {
		kind := kind
		cancel, err := l.store.Subscribe(ctx, adapter.Table(), func(ev remote.Event) {
			if err := l.resolver.ApplyEvent(kind, ev); err != nil {
				l.logger.Error().Err(err).Str("entity", string(kind)).Msg("realtime merge failed")
			}
		})
		if err != nil {
			l.Stop()
			return fmt.Errorf("subscribe %s: %w", adapter.Table(), err)
		}
		l.cancels = append(l.cancels, cancel)
	}
	l.logger.Info().Int("subscriptions", len(l.cancels)).Msg("realtime listener started")
	return nil
}

// Stop cancels all subscriptions.
func (l *Listener) Stop() {
	for _, cancel := range l.cancels {
		cancel()
	}
	l.cancels = nil
}

// ReconcileAll fetches every table and runs bulk reconciliation, used on
// startup and when connectivity returns.
func (l *Listener) ReconcileAll(ctx context.Context) error {
	for _, kind := range models.EntityTypes() {
		adapter, err := adapters.ForEntity(kind)
		if err != nil {
			return err
		}
		rows, err := l.store.FetchAll(ctx, adapter.Table())
		if err != nil {
			return fmt.Errorf("reload %s: %w", adapter.Table(), err)
		}
		if err := l.resolver.Reconcile(ctx, kind, rows); err != nil {
			return err
		}
	}
	return nil
}
