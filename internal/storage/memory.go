package storage

import (
	"context"
	"sync"
)

// MemoryStore is a volatile in-process backend used in tests and as the
// failover fallback of last resort.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	maxSize int
}

func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize == 0 {
		maxSize = DefaultMaxBlobSize
	}
	return &MemoryStore{blobs: make(map[string][]byte), maxSize: maxSize}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, data []byte) error {
	if err := checkSize(data, s.maxSize); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
