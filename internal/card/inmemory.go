package card

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process card store for local/dev use.
type InMemoryStore struct {
	mu    sync.RWMutex
	cards map[string]Payload
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cards: make(map[string]Payload)}
}

func (s *InMemoryStore) Put(_ context.Context, id string, p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[id] = p
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.cards[id]
	if !ok {
		return Payload{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) Close() error { return nil }
