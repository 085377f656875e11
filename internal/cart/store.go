package cart

import (
	"context"
	"sync"
)

// Store persists cart contents by cart id. A missing cart loads as empty.
type Store interface {
	Load(ctx context.Context, cartID string) ([]LineItem, error)
	Save(ctx context.Context, cartID string, items []LineItem) error
	Clear(ctx context.Context, cartID string) error
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]LineItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]LineItem)}
}

func (s *MemoryStore) Load(_ context.Context, cartID string) ([]LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LineItem(nil), s.carts[cartID]...), nil
}

func (s *MemoryStore) Save(_ context.Context, cartID string, items []LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) == 0 {
		delete(s.carts, cartID)
		return nil
	}
	s.carts[cartID] = append([]LineItem(nil), items...)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
	return nil
}
