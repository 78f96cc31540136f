package keyring

import (
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for testing.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string

	// Broken makes every call report ErrUnavailable, simulating a
	// locked or missing platform store.
	Broken bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Set(account, value string) error {
	if s.Broken {
		return fmt.Errorf("%w: store is broken", ErrUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[account] = value
	return nil
}

func (s *MemoryStore) Get(account string) (string, error) {
	if s.Broken {
		return "", fmt.Errorf("%w: store is broken", ErrUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.entries[account]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	return val, nil
}

func (s *MemoryStore) Delete(account string) error {
	if s.Broken {
		return fmt.Errorf("%w: store is broken", ErrUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, account)
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
