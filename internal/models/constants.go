package models

import "time"

const (
	// DefaultMaxRetries is the per-operation retry budget before dead-lettering.
	DefaultMaxRetries = 3

	// DefaultMaxConsecutiveFailures trips the circuit breaker when this many
	// distinct operations fail back to back within one sync pass.
	DefaultMaxConsecutiveFailures = 5

	// DefaultMaxQueueBytes bounds the serialized size of each persisted list.
	DefaultMaxQueueBytes = 5 << 20

	// DefaultProbeInterval is how often the connectivity monitor pings the remote.
	DefaultProbeInterval = 30 * time.Second

	// DefaultSyncInterval is the periodic sync trigger.
	DefaultSyncInterval = 60 * time.Second

	// DefaultInitialBackoff and DefaultMaxBackoff bound the per-operation
	// exponential retry delay.
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 10 * time.Second

	// DefaultRemoteTimeout bounds a single remote write so a hung call feeds
	// the retry path instead of stalling the pass.
	DefaultRemoteTimeout = 15 * time.Second
)
