// Package deadletter holds operations that exhausted their retry budget.
// Entries leave the sink only through an explicit retry-all or clear.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tidesync/internal/models"
	"tidesync/internal/storage"
)

// DefaultKey is the namespaced storage key of the sink blob.
const DefaultKey = "tidesync:deadletter"

// Sink is the persisted dead letter list. Same persistence discipline as the
// operation log: a failed persist rolls back the in-memory change.
type Sink struct {
	mu      sync.Mutex
	store   storage.Store
	key     string
	entries []models.DeadLetterEntry
	logger  zerolog.Logger
}

// New loads any previously persisted entries from the store.
func New(ctx context.Context, store storage.Store, key string, logger zerolog.Logger) (*Sink, error) {
	if key == "" {
		key = DefaultKey
	}

	s := &Sink{
		store:  store,
		key:    key,
		logger: logger.With().Str("component", "deadletter").Logger(),
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load dead letter sink: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("decode dead letter sink: %w", err)
		}
	}

	return s, nil
}

func (s *Sink) persist(ctx context.Context) error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("encode dead letter sink: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist dead letter sink: %w", err)
	}
	return nil
}

// Add appends the failed operation with its retry counter reset to zero.
func (s *Sink) Add(ctx context.Context, op models.Operation, reason string) error {
	op.RetryCount = 0
	entry := models.DeadLetterEntry{Op: op, Reason: reason, FailedAt: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if err := s.persist(ctx); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return err
	}

	s.logger.Warn().Str("op_id", op.ID).Str("entity", string(op.Entity)).Str("reason", reason).Msg("operation dead-lettered")
	return nil
}

// Entries returns a copy of the sink contents.
func (s *Sink) Entries() []models.DeadLetterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DeadLetterEntry(nil), s.entries...)
}

// Count returns the number of dead-lettered operations.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear wipes the sink unconditionally.
func (s *Sink) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.entries
	s.entries = nil
	if err := s.persist(ctx); err != nil {
		s.entries = prev
		return err
	}
	return nil
}

// Drain clears the sink and returns what it held, for re-enqueueing through
// the normal operation log path. Entries whose re-enqueue fails afterwards are
// lost from tracking; callers log them.
func (s *Sink) Drain(ctx context.Context) ([]models.DeadLetterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := s.entries
	s.entries = nil
	if err := s.persist(ctx); err != nil {
		s.entries = drained
		return nil, err
	}
	return drained, nil
}
