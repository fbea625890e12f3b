package engine

import (
	"tidesync/internal/metrics"
	"tidesync/internal/models"
)

// StatusListener receives sync status snapshots.
type StatusListener func(models.SyncStatus)

// Subscribe registers a status listener, replays the current status to it
// immediately and returns an unsubscribe func with deterministic cleanup.
func (e *Engine) Subscribe(fn StatusListener) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	status := e.status
	e.mu.Unlock()

	fn(status)

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Status returns a non-blocking snapshot.
func (e *Engine) Status() models.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// setStatus applies mutate under the lock, refreshes the derived counters and
// fans the new snapshot out to subscribers.
func (e *Engine) setStatus(mutate func(*models.SyncStatus)) {
	e.mu.Lock()
	mutate(&e.status)
	e.status.PendingCount = e.log.Size()
	e.status.DeadLetterCount = e.dead.Count()
	status := e.status
	listeners := make([]StatusListener, 0, len(e.subs))
	for _, fn := range e.subs {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	metrics.SetPending(status.PendingCount)
	metrics.SetDeadLetters(status.DeadLetterCount)

	for _, fn := range listeners {
		fn(status)
	}
}
