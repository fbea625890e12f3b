// Package engine drains the operation log against the remote store. It owns
// the retry budget, the poison-operation isolation and the circuit breaker,
// and exposes the ingress surface the application layer calls: enqueue a
// mutation, read or subscribe to sync status, and operate the dead letter
// sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tidesync/internal/adapters"
	"tidesync/internal/connectivity"
	"tidesync/internal/deadletter"
	"tidesync/internal/metrics"
	"tidesync/internal/models"
	"tidesync/internal/oplog"
	"tidesync/internal/remote"
	"tidesync/internal/storage"
)

// ErrCircuitOpen reports a sync pass halted after too many distinct
// operations failed back to back. The pass resumes on the next trigger.
var ErrCircuitOpen = errors.New("sync halted: too many consecutive failures")

// errDeadLettered marks an operation that exhausted its budget inside a pass.
var errDeadLettered = errors.New("operation dead-lettered")

// ConnectivitySource is the monitor surface the engine needs.
type ConnectivitySource interface {
	State() models.ConnectionState
	Subscribe(connectivity.Listener) func()
}

// Config tunes the orchestrator.
type Config struct {
	MaxConsecutiveFailures int
	SyncInterval           time.Duration
	RemoteTimeout          time.Duration
	Retry                  RetryPolicy
}

func (c *Config) applyDefaults() {
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = models.DefaultMaxConsecutiveFailures
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = models.DefaultSyncInterval
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = models.DefaultRemoteTimeout
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = models.DefaultInitialBackoff
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = models.DefaultMaxBackoff
	}
	if c.Retry.BackoffFactor <= 0 {
		c.Retry.BackoffFactor = 2
	}
}

// Mutation is the ingress shape of one local change to push remotely.
type Mutation struct {
	Entity  models.EntityType
	Action  models.Action
	Payload models.OperationPayload
}

func (m Mutation) validate() error {
	if !m.Action.Valid() {
		return fmt.Errorf("unknown action: %q", m.Action)
	}
	if err := m.Payload.Validate(); err != nil {
		return err
	}
	if m.Entity != m.Payload.Entity {
		return fmt.Errorf("mutation entity %s does not match payload entity %s", m.Entity, m.Payload.Entity)
	}
	return nil
}

// Engine is constructed once at startup and passed by reference; there is no
// package-level instance.
type Engine struct {
	cfg      Config
	log      *oplog.Log
	dead     *deadletter.Sink
	remote   remote.Store
	adapters map[models.EntityType]adapters.Adapter
	monitor  ConnectivitySource
	logger   zerolog.Logger

	// OnReconnect, when set before Start, runs after connectivity returns
	// (bulk reconciliation hook).
	OnReconnect func(context.Context) error

	syncing atomic.Bool

	mu      sync.Mutex
	status  models.SyncStatus
	subs    map[int]StatusListener
	nextSub int

	// sleep is replaced in tests to skip real backoff waits.
	sleep func(context.Context, time.Duration)
}

func New(cfg Config, log *oplog.Log, dead *deadletter.Sink, store remote.Store, monitor ConnectivitySource, logger zerolog.Logger) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:      cfg,
		log:      log,
		dead:     dead,
		remote:   store,
		adapters: adapters.All(),
		monitor:  monitor,
		logger:   logger.With().Str("component", "engine").Logger(),
		subs:     make(map[int]StatusListener),
		sleep:    sleepCtx,
	}
	e.status = models.SyncStatus{
		PendingCount:    log.Size(),
		DeadLetterCount: dead.Count(),
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (e *Engine) online() bool {
	if e.monitor == nil {
		return true
	}
	return e.monitor.State().Online()
}

// Start wires the periodic trigger and the connectivity trigger, then blocks
// until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	var wasOnline atomic.Bool
	wasOnline.Store(e.online())

	var unsubscribe func()
	if e.monitor != nil {
		unsubscribe = e.monitor.Subscribe(func(state models.ConnectionState) {
			online := state.Online()
			if online && !wasOnline.Swap(true) {
				e.logger.Info().Msg("connectivity regained, triggering sync")
				go e.onReconnect(ctx)
			}
			if !online {
				wasOnline.Store(false)
			}
		})
	}
	if unsubscribe != nil {
		defer unsubscribe()
	}

	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.TriggerSync(ctx)
		}
	}
}

func (e *Engine) onReconnect(ctx context.Context) {
	if e.OnReconnect != nil {
		if err := e.OnReconnect(ctx); err != nil {
			e.logger.Error().Err(err).Msg("reconnect reconciliation failed")
		}
	}
	if err := e.Sync(ctx); err != nil {
		e.logger.Error().Err(err).Msg("reconnect sync failed")
	}
}

// QueueOperation applies the durability path for one optimistic local
// mutation: assign an id, persist to the operation log, trigger a sync pass.
// On a storage quota failure the operation is not dropped: it falls back to
// an immediate direct remote write and, failing that, to a direct dead letter
// entry — both observed, never fire-and-forget.
func (e *Engine) QueueOperation(ctx context.Context, m Mutation) (string, error) {
	if err := m.validate(); err != nil {
		return "", err
	}

	op := models.Operation{
		ID:      uuid.New().String(),
		Entity:  m.Entity,
		Action:  m.Action,
		Payload: m.Payload,
	}

	if err := e.log.Enqueue(ctx, &op); err != nil {
		if !errors.Is(err, storage.ErrTooLarge) {
			return "", err
		}
		e.logger.Warn().Err(err).Str("op_id", op.ID).Msg("operation log full, attempting direct remote write")
		if derr := e.sendOperation(ctx, op); derr == nil {
			metrics.IncSyncOp(string(op.Entity), string(op.Action), "direct")
			return op.ID, nil
		} else if dlerr := e.dead.Add(ctx, op, fmt.Sprintf("queue full, direct write failed: %v", derr)); dlerr != nil {
			return "", fmt.Errorf("enqueue failed (%w), direct write failed (%v), dead letter failed: %v", err, derr, dlerr)
		}
		e.setStatus(func(s *models.SyncStatus) {})
		return op.ID, nil
	}

	e.setStatus(func(s *models.SyncStatus) {})

	if e.online() {
		e.TriggerSync(ctx)
	}
	return op.ID, nil
}

// AddToDeadLetter is the direct ingress used when both the queue and an
// immediate fallback write failed upstream.
func (e *Engine) AddToDeadLetter(ctx context.Context, m Mutation, reason string) error {
	if err := m.validate(); err != nil {
		return err
	}
	op := models.Operation{
		ID:         uuid.New().String(),
		Entity:     m.Entity,
		Action:     m.Action,
		Payload:    m.Payload,
		EnqueuedAt: time.Now(),
	}
	if err := e.dead.Add(ctx, op, reason); err != nil {
		return err
	}
	e.setStatus(func(s *models.SyncStatus) {})
	return nil
}

// QueueInfo exposes the operational queue snapshot.
func (e *Engine) QueueInfo() models.QueueInfo {
	return e.log.Info()
}

// DeadLetters lists the parked operations.
func (e *Engine) DeadLetters() []models.DeadLetterEntry {
	return e.dead.Entries()
}

// ClearQueue wipes the operation log.
func (e *Engine) ClearQueue(ctx context.Context) error {
	if err := e.log.Clear(ctx); err != nil {
		return err
	}
	e.setStatus(func(s *models.SyncStatus) {})
	return nil
}

// ClearDeadLetter wipes the sink unconditionally.
func (e *Engine) ClearDeadLetter(ctx context.Context) error {
	if err := e.dead.Clear(ctx); err != nil {
		return err
	}
	e.setStatus(func(s *models.SyncStatus) {})
	return nil
}

// RetryDeadLetter clears the sink first, then re-enqueues every entry through
// the normal operation log path with its retry counter reset. Entries that
// fail re-enqueue under storage pressure are lost from tracking; they are
// logged but cannot be recovered.
func (e *Engine) RetryDeadLetter(ctx context.Context) error {
	entries, err := e.dead.Drain(ctx)
	if err != nil {
		return err
	}

	var lost int
	for _, entry := range entries {
		op := entry.Op
		op.RetryCount = 0
		if err := e.log.Enqueue(ctx, &op); err != nil {
			lost++
			e.logger.Error().Err(err).Str("op_id", op.ID).Msg("dead letter re-enqueue failed, entry lost")
		}
	}

	e.setStatus(func(s *models.SyncStatus) {})

	if e.online() {
		e.TriggerSync(ctx)
	}
	if lost > 0 {
		return fmt.Errorf("%d dead letter entries lost during re-enqueue", lost)
	}
	return nil
}

// TriggerSync starts a pass in the background. Concurrent triggers while a
// pass is running are no-ops.
func (e *Engine) TriggerSync(ctx context.Context) {
	go func() {
		if err := e.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error().Err(err).Msg("sync pass failed")
		}
	}()
}

// Sync drains the operation log FIFO until it is empty, connectivity is lost,
// or the circuit breaker trips. Single-flight: a second caller returns
// immediately. A final status emission is guaranteed even if the loop
// panics, so observers never see a pass stuck in syncing.
func (e *Engine) Sync(ctx context.Context) (err error) {
	if !e.online() {
		return nil
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}

	e.setStatus(func(s *models.SyncStatus) {
		s.Syncing = true
		s.LastError = ""
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync pass panicked: %v", r)
			e.logger.Error().Interface("panic", r).Msg("sync pass panicked")
		}
		now := time.Now()
		e.syncing.Store(false)
		e.setStatus(func(s *models.SyncStatus) {
			s.Syncing = false
			s.LastSyncAt = &now
			if err != nil {
				s.LastError = err.Error()
			}
		})
	}()

	consecutive := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !e.online() {
			return nil
		}

		op, ok := e.log.Peek()
		if !ok {
			return nil
		}

		perr := e.processOperation(ctx, op)
		switch {
		case perr == nil:
			consecutive = 0
		case errors.Is(perr, errDeadLettered):
			consecutive++
			if consecutive >= e.cfg.MaxConsecutiveFailures {
				metrics.IncBreakerTrip()
				e.logger.Error().Int("failures", consecutive).Msg("circuit breaker tripped, halting pass")
				return ErrCircuitOpen
			}
		default:
			// Persistence or context failure inside the pass; stop here and
			// let the next trigger resume.
			return perr
		}
	}
}

// processOperation drives one head operation to a terminal outcome: removed
// on success, or dead-lettered after the retry budget, backing off between
// attempts.
func (e *Engine) processOperation(ctx context.Context, op models.Operation) error {
	for {
		err := e.sendOperation(ctx, op)
		if err == nil {
			metrics.IncSyncOp(string(op.Entity), string(op.Action), "success")
			if rerr := e.log.Remove(ctx, op.ID); rerr != nil && !errors.Is(rerr, oplog.ErrNotFound) {
				return rerr
			}
			e.setStatus(func(s *models.SyncStatus) {})
			return nil
		}

		metrics.IncSyncOp(string(op.Entity), string(op.Action), "failure")
		e.logger.Warn().Err(err).Str("op_id", op.ID).Int("retry", op.RetryCount).Msg("remote write failed")

		updated, exceeded, rerr := e.log.IncrementRetry(ctx, op.ID)
		if rerr != nil {
			return rerr
		}
		if exceeded {
			if dlerr := e.dead.Add(ctx, updated, err.Error()); dlerr != nil {
				return dlerr
			}
			e.setStatus(func(s *models.SyncStatus) {})
			return errDeadLettered
		}

		op = updated
		e.sleep(ctx, e.cfg.Retry.NextDelay(op.RetryCount))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// sendOperation executes one remote write under the request timeout. Batch
// payloads are deduplicated by conflict key first, keeping the last
// occurrence, because the remote rejects conflicting writes to the same row
// within one call.
func (e *Engine) sendOperation(ctx context.Context, op models.Operation) error {
	adapter, ok := e.adapters[op.Entity]
	if !ok {
		return fmt.Errorf("no adapter for entity %s", op.Entity)
	}

	records, err := dedupeByKey(adapter, op.Payload.Records())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	if op.Action.IsDelete() {
		keys := make([]string, len(records))
		at := time.Now()
		for i, rec := range records {
			key, err := adapter.Key(rec)
			if err != nil {
				return err
			}
			keys[i] = key
			if t := rec.ModifiedAt(); t.After(at) {
				at = t
			}
		}
		return e.remote.SoftDelete(callCtx, adapter.Table(), adapter.ConflictKey(), keys, at)
	}

	rows, err := adapter.ToRemote(records)
	if err != nil {
		return err
	}
	return e.remote.Upsert(callCtx, adapter.Table(), adapter.ConflictKey(), rows)
}

// dedupeByKey keeps the last occurrence per conflict key, preserving the
// order in which keys first appear.
func dedupeByKey(adapter adapters.Adapter, records []models.Record) ([]models.Record, error) {
	if len(records) <= 1 {
		return records, nil
	}

	latest := make(map[string]models.Record, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		key, err := adapter.Key(rec)
		if err != nil {
			return nil, err
		}
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = rec
	}

	out := make([]models.Record, len(order))
	for i, key := range order {
		out[i] = latest[key]
	}
	return out, nil
}
