package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"partyshop/internal/models"
	"partyshop/internal/util"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

// Remote is the shared product cache every instance reads through
type Remote interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error
	InvalidateProduct(ctx context.Context, id string) error
}

type entry struct {
	raw     []byte
	expires time.Time
}

// ProductCache is an in-process LRU tier in front of the shared cache.
// Entries are kept as encoded documents so callers never share a *Product.
// The local tier is per instance; catalog events evict it through EvictLocal.
type ProductCache struct {
	remote   Remote
	localTTL time.Duration

	mu    sync.Mutex
	local *lru.Cache
	gen   uint64 // bumped on every eviction; reads started before it must not repopulate
	group singleflight.Group
	now   func() time.Time
}

// NewProductCache creates a two-tier product cache holding at most size local entries
func NewProductCache(remote Remote, size int, localTTL time.Duration) *ProductCache {
	return &ProductCache{
		remote:   remote,
		localTTL: localTTL,
		local:    lru.New(size),
		now:      time.Now,
	}
}

// GetProduct returns a product from the local tier, falling back to the shared cache.
// Concurrent misses for the same id share one remote read. Nil means a miss in both tiers.
func (c *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if raw, ok := c.lookup(id); ok {
		util.CatalogLocalCacheHitsTotal.Inc()
		return decode(raw)
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		gen := c.generation()
		p, err := c.remote.GetProduct(ctx, id)
		if err != nil || p == nil {
			return nil, err
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		c.storeIfCurrent(id, raw, gen)
		return raw, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return decode(v.([]byte))
}

// SetProduct writes both tiers
func (c *ProductCache) SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error {
	if err := c.remote.SetProduct(ctx, p, ttl); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	c.store(p.ID, raw)
	return nil
}

// InvalidateProduct drops a product from both tiers
func (c *ProductCache) InvalidateProduct(ctx context.Context, id string) error {
	c.EvictLocal(id)
	return c.remote.InvalidateProduct(ctx, id)
}

// EvictLocal drops a product from this instance only
func (c *ProductCache) EvictLocal(id string) {
	c.group.Forget(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.local.Remove(id)
}

// Len reports the number of local entries
func (c *ProductCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.Len()
}

func (c *ProductCache) lookup(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.local.Get(id)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if c.now().After(e.expires) {
		c.local.Remove(id)
		return nil, false
	}
	return e.raw, true
}

func (c *ProductCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *ProductCache) storeIfCurrent(id string, raw []byte, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.local.Add(id, entry{raw: raw, expires: c.now().Add(c.localTTL)})
}

func (c *ProductCache) store(id string, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local.Add(id, entry{raw: raw, expires: c.now().Add(c.localTTL)})
}

func decode(raw []byte) (*models.Product, error) {
	var p models.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
