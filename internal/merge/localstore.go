package merge

import (
	"sync"

	"tidesync/internal/models"
)

// LocalStore is the working set of the application layer. The resolver writes
// merge outcomes into it; it never talks to the network.
type LocalStore interface {
	Get(kind models.EntityType, id string) (models.Record, bool)
	Put(kind models.EntityType, rec models.Record)
	Delete(kind models.EntityType, id string)
	All(kind models.EntityType) []models.Record
}

// MemoryStore is a map-backed LocalStore, used by the daemon and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[models.EntityType]map[string]models.Record
}

func NewMemoryStore() *MemoryStore {
	records := make(map[models.EntityType]map[string]models.Record)
	for _, t := range models.EntityTypes() {
		records[t] = make(map[string]models.Record)
	}
	return &MemoryStore{records: records}
}

func (s *MemoryStore) Get(kind models.EntityType, id string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[kind][id]
	return rec, ok
}

func (s *MemoryStore) Put(kind models.EntityType, rec models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[kind][rec.RecordID()] = rec
}

func (s *MemoryStore) Delete(kind models.EntityType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[kind], id)
}

func (s *MemoryStore) All(kind models.EntityType) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, 0, len(s.records[kind]))
	for _, rec := range s.records[kind] {
		out = append(out, rec)
	}
	return out
}
