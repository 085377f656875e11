package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"partyshop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type memoryRemote struct {
	mu       sync.Mutex
	products map[string]models.Product
	gets     int32
	gate     chan struct{}
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{products: make(map[string]models.Product)}
}

func (m *memoryRemote) GetProduct(_ context.Context, id string) (*models.Product, error) {
	atomic.AddInt32(&m.gets, 1)
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memoryRemote) SetProduct(_ context.Context, p *models.Product, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = *p
	return nil
}

func (m *memoryRemote) InvalidateProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

func TestLocalTierServesRepeatReads(t *testing.T) {
	remote := newMemoryRemote()
	c := NewProductCache(remote, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, remote.SetProduct(ctx, &models.Product{ID: "p1", Title: "Gold Balloons"}, time.Minute))

	for i := 0; i < 3; i++ {
		p, err := c.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Gold Balloons", p.Title)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&remote.gets))

	missing, err := c.GetProduct(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, 1, c.Len())
}

func TestCallersDoNotShareDocuments(t *testing.T) {
	c := NewProductCache(newMemoryRemote(), 10, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.SetProduct(ctx, &models.Product{ID: "p1", Title: "Banner"}, time.Minute))

	first, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	first.Title = "edited"

	second, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Banner", second.Title)
}

func TestLocalEntriesExpire(t *testing.T) {
	remote := newMemoryRemote()
	c := NewProductCache(remote, 10, time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.SetProduct(ctx, &models.Product{ID: "p1", Title: "v1"}, time.Minute))
	require.NoError(t, remote.SetProduct(ctx, &models.Product{ID: "p1", Title: "v2"}, time.Minute))

	p, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "v1", p.Title)

	now = now.Add(2 * time.Second)
	p, err = c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Title)
}

func TestLRUBound(t *testing.T) {
	c := NewProductCache(newMemoryRemote(), 2, time.Minute)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.SetProduct(ctx, &models.Product{ID: id}, time.Minute))
	}
	assert.Equal(t, 2, c.Len())
}

// Two instances share the remote tier. A write on one instance clears the remote tier
// and its own local tier; the other keeps serving its local copy until it evicts.
func TestEvictLocalConvergesOtherInstance(t *testing.T) {
	remote := newMemoryRemote()
	a := NewProductCache(remote, 10, time.Hour)
	b := NewProductCache(remote, 10, time.Hour)
	ctx := context.Background()

	require.NoError(t, remote.SetProduct(ctx, &models.Product{ID: "p1", Title: "v1"}, time.Minute))
	p, err := b.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "v1", p.Title)

	require.NoError(t, a.InvalidateProduct(ctx, "p1"))
	require.NoError(t, a.SetProduct(ctx, &models.Product{ID: "p1", Title: "v2"}, time.Minute))

	p, err = b.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "v1", p.Title)

	b.EvictLocal("p1")
	p, err = b.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Title)
}

func TestConcurrentMissesShareOneRemoteRead(t *testing.T) {
	remote := newMemoryRemote()
	ctx := context.Background()
	require.NoError(t, remote.SetProduct(ctx, &models.Product{ID: "p1", Title: "Streamers"}, time.Minute))
	remote.gate = make(chan struct{})
	c := NewProductCache(remote, 10, time.Minute)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			p, err := c.GetProduct(gctx, "p1")
			if err == nil {
				assert.Equal(t, "Streamers", p.Title)
			}
			return err
		})
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&remote.gets) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(remote.gate)
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, atomic.LoadInt32(&remote.gets), int32(2))
}

func TestEvictionDuringReadIsNotUndone(t *testing.T) {
	remote := newMemoryRemote()
	ctx := context.Background()
	require.NoError(t, remote.SetProduct(ctx, &models.Product{ID: "p1", Title: "stale"}, time.Minute))
	remote.gate = make(chan struct{})
	c := NewProductCache(remote, 10, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.GetProduct(ctx, "p1")
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&remote.gets) == 1 }, time.Second, time.Millisecond)
	c.EvictLocal("p1")
	close(remote.gate)
	<-done

	assert.Equal(t, 0, c.Len())
}
