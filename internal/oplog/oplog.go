// Package oplog implements the durable FIFO queue of pending mutations.
// The whole queue is serialized and swapped atomically on every change, so an
// operation is never partially persisted: a failed write rolls back the
// in-memory change and memory never diverges from storage.
package oplog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tidesync/internal/models"
	"tidesync/internal/storage"
)

// DefaultKey is the namespaced storage key of the queue blob.
const DefaultKey = "tidesync:oplog"

// ErrNotFound is returned when an operation id is not in the queue.
var ErrNotFound = errors.New("oplog: operation not found")

// Log is the persisted operation queue. All methods are safe for concurrent use.
type Log struct {
	mu         sync.Mutex
	store      storage.Store
	key        string
	maxRetries int
	ops        []models.Operation
	sizeBytes  int
	logger     zerolog.Logger
}

// New loads any previously persisted queue from the store.
func New(ctx context.Context, store storage.Store, key string, maxRetries int, logger zerolog.Logger) (*Log, error) {
	if key == "" {
		key = DefaultKey
	}
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	l := &Log{
		store:      store,
		key:        key,
		maxRetries: maxRetries,
		logger:     logger.With().Str("component", "oplog").Logger(),
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load operation log: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &l.ops); err != nil {
			return nil, fmt.Errorf("decode operation log: %w", err)
		}
		l.sizeBytes = len(data)
	}

	return l, nil
}

// persist writes the full queue. Callers hold l.mu and roll back on error.
func (l *Log) persist(ctx context.Context) error {
	data, err := json.Marshal(l.ops)
	if err != nil {
		return fmt.Errorf("encode operation log: %w", err)
	}
	if err := l.store.Set(ctx, l.key, data); err != nil {
		return fmt.Errorf("persist operation log: %w", err)
	}
	l.sizeBytes = len(data)
	return nil
}

// Enqueue assigns id, timestamp and zero retry count, appends the operation
// and persists the queue. On persistence failure the append is rolled back
// and the error returned; callers must not silently drop the operation.
func (l *Log) Enqueue(ctx context.Context, op *models.Operation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now()
	}
	op.RetryCount = 0

	l.mu.Lock()
	defer l.mu.Unlock()

	l.ops = append(l.ops, *op)
	if err := l.persist(ctx); err != nil {
		l.ops = l.ops[:len(l.ops)-1]
		return err
	}

	l.logger.Debug().Str("op_id", op.ID).Str("entity", string(op.Entity)).Str("action", string(op.Action)).Msg("operation enqueued")
	return nil
}

// Peek returns a copy of the head operation without removing it.
func (l *Log) Peek() (models.Operation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ops) == 0 {
		return models.Operation{}, false
	}
	return l.ops[0], true
}

// Dequeue removes and returns the head operation.
func (l *Log) Dequeue(ctx context.Context) (models.Operation, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ops) == 0 {
		return models.Operation{}, false, nil
	}

	head := l.ops[0]
	rest := l.ops[1:]
	prev := l.ops
	l.ops = append([]models.Operation(nil), rest...)
	if err := l.persist(ctx); err != nil {
		l.ops = prev
		return models.Operation{}, false, err
	}
	return head, true, nil
}

// Remove deletes the operation with the given id, wherever it sits.
func (l *Log) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}

	prev := l.ops
	l.ops = append(append([]models.Operation(nil), l.ops[:idx]...), l.ops[idx+1:]...)
	if err := l.persist(ctx); err != nil {
		l.ops = prev
		return err
	}
	return nil
}

// IncrementRetry bumps the retry counter and persists. When the counter
// reaches the budget the operation is removed and exceeded=true is returned
// together with the removed operation so the caller can dead-letter it.
func (l *Log) IncrementRetry(ctx context.Context, id string) (models.Operation, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return models.Operation{}, false, ErrNotFound
	}

	l.ops[idx].RetryCount++
	if l.ops[idx].RetryCount >= l.maxRetries {
		removed := l.ops[idx]
		prev := l.ops
		l.ops = append(append([]models.Operation(nil), l.ops[:idx]...), l.ops[idx+1:]...)
		if err := l.persist(ctx); err != nil {
			l.ops = prev
			l.ops[idx].RetryCount--
			return models.Operation{}, false, err
		}
		return removed, true, nil
	}

	if err := l.persist(ctx); err != nil {
		l.ops[idx].RetryCount--
		return models.Operation{}, false, err
	}
	return l.ops[idx], false, nil
}

// Clear wipes the queue.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.ops
	l.ops = nil
	if err := l.persist(ctx); err != nil {
		l.ops = prev
		return err
	}
	return nil
}

// Size returns the number of pending operations.
func (l *Log) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

// Snapshot returns a copy of the queue in FIFO order.
func (l *Log) Snapshot() []models.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Operation(nil), l.ops...)
}

// Info reports count, approximate serialized size and the oldest timestamp.
func (l *Log) Info() models.QueueInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	info := models.QueueInfo{Count: len(l.ops), SizeBytes: l.sizeBytes}
	if len(l.ops) > 0 {
		oldest := l.ops[0].EnqueuedAt
		info.OldestEnqueuedAt = &oldest
	}
	return info
}

// PendingRecordIDs collects the entity record ids referenced by pending
// operations of the given kind. Bulk reconciliation uses membership here to
// tell an unsynced local creation apart from a record deleted elsewhere.
func (l *Log) PendingRecordIDs(entity models.EntityType) map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make(map[string]struct{})
	for _, op := range l.ops {
		if op.Entity != entity {
			continue
		}
		for _, rec := range op.Payload.Records() {
			ids[rec.RecordID()] = struct{}{}
		}
	}
	return ids
}

func (l *Log) indexOf(id string) int {
	for i := range l.ops {
		if l.ops[i].ID == id {
			return i
		}
	}
	return -1
}
