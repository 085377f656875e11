package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"partyshop/internal/cart"

	"github.com/go-redis/redis/v8"
)

// DefaultCartTTL is the inactivity window after which a stored cart expires.
const DefaultCartTTL = 7 * 24 * time.Hour

// CartStore keeps each cart as one JSON document. Concurrent writers to the same cart: last write wins.
type CartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCartStore(c *Client, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{rdb: c.rdb, ttl: ttl}
}

func cartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

func (s *CartStore) Load(ctx context.Context, cartID string) ([]cart.LineItem, error) {
	raw, err := s.rdb.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []cart.LineItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart %s: %w", cartID, err)
	}

	var items []cart.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid cart document %s: %w", cartID, err)
	}
	return items, nil
}

func (s *CartStore) Save(ctx context.Context, cartID string, items []cart.LineItem) error {
	if len(items) == 0 {
		return s.Clear(ctx, cartID)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", cartID, err)
	}
	if err := s.rdb.Set(ctx, cartKey(cartID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart %s: %w", cartID, err)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, cartID string) error {
	if err := s.rdb.Del(ctx, cartKey(cartID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart %s: %w", cartID, err)
	}
	return nil
}
