// Package connectivity tracks two independent reachability signals: the
// device-level network state, reported from outside, and the remote endpoint,
// checked by a periodic probe.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tidesync/internal/metrics"
	"tidesync/internal/models"
)

// Pinger probes the remote endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Listener receives connection state snapshots.
type Listener func(models.ConnectionState)

// Monitor owns the probe loop and fans state changes out to subscribers.
// New subscribers receive the current state immediately so there is no gap
// between subscribing and the first event.
type Monitor struct {
	mu       sync.Mutex
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	state    models.ConnectionState
	subs     map[int]Listener
	nextSub  int
	stop     chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

func NewMonitor(pinger Pinger, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = models.DefaultProbeInterval
	}
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		timeout:  10 * time.Second,
		state:    models.ConnectionState{NetworkOnline: true},
		subs:     make(map[int]Listener),
		stop:     make(chan struct{}),
		logger:   logger.With().Str("component", "connectivity").Logger(),
	}
}

// Start runs the periodic probe until ctx is done or Close is called.
func (m *Monitor) Start(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// SetNetworkOnline feeds the external network signal. Regaining the network
// triggers an immediate probe; losing it marks the remote unreachable without
// any network call.
func (m *Monitor) SetNetworkOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.state.NetworkOnline != online
	m.state.NetworkOnline = online
	if !online {
		m.state.RemoteReachable = false
		m.state.LastCheckedAt = time.Now()
	}
	state := m.state
	m.mu.Unlock()

	if !online {
		if changed {
			m.logger.Warn().Msg("network offline")
			m.notify(state)
		}
		return
	}
	if changed {
		m.logger.Info().Msg("network online, probing remote")
	}
	m.CheckNow(ctx)
}

// CheckNow probes the remote immediately, short-circuiting while offline.
func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.Lock()
	online := m.state.NetworkOnline
	m.mu.Unlock()

	reachable := false
	if online {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.pinger.Ping(probeCtx)
		cancel()
		reachable = err == nil
		metrics.IncProbe(reachable)
		if err != nil {
			m.logger.Debug().Err(err).Msg("remote probe failed")
		}
	}

	m.mu.Lock()
	changed := m.state.RemoteReachable != reachable || m.state.LastCheckedAt.IsZero()
	m.state.RemoteReachable = reachable
	m.state.LastCheckedAt = time.Now()
	state := m.state
	m.mu.Unlock()

	if changed {
		m.notify(state)
	}
}

// Subscribe registers a listener, replays the current state to it right away
// and returns an unsubscribe func.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	state := m.state
	m.mu.Unlock()

	fn(state)

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// State returns the current snapshot.
func (m *Monitor) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close stops the probe loop. Safe to call more than once.
func (m *Monitor) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) notify(state models.ConnectionState) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
