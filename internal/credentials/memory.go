package credentials

import (
	"context"
	"sync"
)

// InMemoryStore keeps the token pair in memory for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	pair *TokenPair
}

// NewMemory constructs an empty in-memory credential store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (*TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair == nil {
		return nil, ErrNoCredentials
	}
	copied := *s.pair
	return &copied, nil
}

func (s *InMemoryStore) Save(_ context.Context, pair *TokenPair) error {
	copied := *pair
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = &copied
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	return nil
}

var _ Store = (*InMemoryStore)(nil)
