package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrTooLarge is returned when a blob exceeds the configured size bound.
// Callers treat it as a quota condition: not retryable, surfaced immediately.
var ErrTooLarge = errors.New("storage: blob exceeds size limit")

// DefaultMaxBlobSize bounds each persisted blob (5 MB).
const DefaultMaxBlobSize = 5 << 20

// Store persists namespaced JSON blobs. Get returns nil data and no error for
// a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func checkSize(data []byte, max int) error {
	if max > 0 && len(data) > max {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), max)
	}
	return nil
}
