package cart

import (
	"context"
	"fmt"
	"sync"

	"partyshop/internal/apperr"
)

// EventKind names a cart mutation.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
	EventCleared EventKind = "cleared"
)

// Event is delivered to subscribers after a mutation was saved.
type Event struct {
	CartID string
	Kind   EventKind
	Key    Key
	Items  []LineItem
}

// Listener receives cart events.
type Listener func(Event)

// Manager applies cart mutations through a Store and notifies subscribers.
type Manager struct {
	store Store

	mu     sync.Mutex
	subsMu sync.RWMutex
	subs   map[int]Listener
	nextID int
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, subs: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that unregisters it.
func (m *Manager) Subscribe(l Listener) func() {
	m.subsMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = l
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *Manager) notify(ev Event) {
	m.subsMu.RLock()
	listeners := make([]Listener, 0, len(m.subs))
	for _, l := range m.subs {
		listeners = append(listeners, l)
	}
	m.subsMu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// Items returns the current cart contents.
func (m *Manager) Items(ctx context.Context, cartID string) ([]LineItem, error) {
	items, err := m.store.Load(ctx, cartID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load cart")
	}
	return items, nil
}

// Add merges item into the cart.
func (m *Manager) Add(ctx context.Context, cartID string, item LineItem) ([]LineItem, error) {
	if item.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	return m.mutate(ctx, cartID, item.Key(), func(items []LineItem) ([]LineItem, EventKind, error) {
		return Merge(items, item), EventAdded, nil
	})
}

// UpdateQuantity changes a quantity by delta; the item is removed when it reaches zero.
func (m *Manager) UpdateQuantity(ctx context.Context, cartID string, key Key, delta int) ([]LineItem, error) {
	return m.mutate(ctx, cartID, key, func(items []LineItem) ([]LineItem, EventKind, error) {
		out, err := ApplyDelta(items, key, delta)
		if err != nil {
			return nil, "", err
		}
		if len(out) < len(items) {
			return out, EventRemoved, nil
		}
		return out, EventUpdated, nil
	})
}

// Remove deletes the item with key.
func (m *Manager) Remove(ctx context.Context, cartID string, key Key) ([]LineItem, error) {
	return m.mutate(ctx, cartID, key, func(items []LineItem) ([]LineItem, EventKind, error) {
		out, ok := Remove(items, key)
		if !ok {
			return nil, "", apperr.NotFound("cart item not found: %s", key.ProductID)
		}
		return out, EventRemoved, nil
	})
}

// Clear empties the cart.
func (m *Manager) Clear(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(ctx, cartID); err != nil {
		return apperr.Upstream(err, "failed to clear cart")
	}
	m.notify(Event{CartID: cartID, Kind: EventCleared})
	return nil
}

func (m *Manager) mutate(ctx context.Context, cartID string, key Key, fn func([]LineItem) ([]LineItem, EventKind, error)) ([]LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, err := m.store.Load(ctx, cartID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load cart")
	}
	next, kind, err := fn(items)
	if err != nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, err)
	}
	if err := m.store.Save(ctx, cartID, next); err != nil {
		return nil, apperr.Upstream(err, "failed to save cart")
	}
	m.notify(Event{CartID: cartID, Kind: kind, Key: key, Items: append([]LineItem(nil), next...)})
	return next, nil
}
