package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with a process-local map. It is the default
// for single-instance deployments and for tests; TTLs are enforced lazily
// on read.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	ttl     time.Duration
}

type memoryRecord struct {
	rec       Record
	expiresAt time.Time
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore(ttl time.Duration) Store {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = memoryRecord{rec: *rec, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	entry, ok := s.records[sessionID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	rec := entry.rec
	return &rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

func (s *MemoryStore) RefreshTTL(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.records[sessionID]; ok {
		entry.expiresAt = time.Now().Add(s.ttl)
		s.records[sessionID] = entry
	}
	return nil
}
