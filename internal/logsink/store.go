package logsink

import (
	"context"
	"sync"
)

// Store is the durable side of the sink. Implementations keep at most their
// configured cap of entries, evicting the oldest first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
	Close() error
}

// MemStore is a Store kept in process memory.
type MemStore struct {
	mu      sync.RWMutex
	cap     int
	entries []Entry
}

// NewMemStore creates an in-memory store holding at most cap entries.
func NewMemStore(cap int) *MemStore {
	return &MemStore{cap: cap}
}

// Append adds entry and evicts the oldest beyond the cap.
func (s *MemStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = trim(append(s.entries, entry), s.cap)
	return nil
}

// List returns a copy of the stored entries, oldest first.
func (s *MemStore) List(context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...), nil
}

// Clear drops every entry.
func (s *MemStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
