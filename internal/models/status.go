package models

import "time"

// ConnectionState is the two-signal connectivity snapshot: the device-level
// network signal and the result of the last remote endpoint probe.
// RemoteReachable is meaningless while NetworkOnline is false; the probe is
// skipped entirely in that case.
type ConnectionState struct {
	NetworkOnline   bool      `json:"network_online"`
	RemoteReachable bool      `json:"remote_reachable"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
}

// Online reports whether the remote store is currently usable.
func (s ConnectionState) Online() bool {
	return s.NetworkOnline && s.RemoteReachable
}

// SyncStatus is the observable state of the sync engine.
type SyncStatus struct {
	Syncing         bool       `json:"syncing"`
	PendingCount    int        `json:"pending_count"`
	LastSyncAt      *time.Time `json:"last_sync_at"`
	LastError       string     `json:"last_error"`
	DeadLetterCount int        `json:"dead_letter_count"`
}

// QueueInfo is the operational snapshot of the operation log.
type QueueInfo struct {
	Count            int        `json:"count"`
	SizeBytes        int        `json:"size_bytes"`
	OldestEnqueuedAt *time.Time `json:"oldest_enqueued_at"`
}
