package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"partyshop/internal/broker"
	"partyshop/internal/cache"
	"partyshop/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingCache struct {
	ids []string
	err error
}

func (r *recordingCache) InvalidateCache(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

func encode(t *testing.T, event interface{}) kafka.Message {
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestCatalogEventsInvalidateCache(t *testing.T) {
	cache := &recordingCache{}
	h := NewCatalogEventHandler(cache, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.HandleMessage(ctx, encode(t, &models.ProductChangedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeProductUpdated),
		ProductID: "p1",
	})))
	require.NoError(t, h.HandleMessage(ctx, encode(t, &models.CategoryDeletedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeCategoryDeleted),
		ProductIDs: []string{"p2", "p3"},
	})))

	assert.Equal(t, []string{"p1", "p2", "p3"}, cache.ids)
}

func TestCatalogEventFailureIsReturned(t *testing.T) {
	cache := &recordingCache{err: errors.New("redis down")}
	h := NewCatalogEventHandler(cache, zap.NewNop())

	err := h.HandleMessage(context.Background(), encode(t, &models.ProductChangedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeProductDeleted),
		ProductID: "p1",
	}))
	assert.Error(t, err)
}

type sharedRemote struct {
	mu       sync.Mutex
	products map[string]models.Product
}

func (r *sharedRemote) GetProduct(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *sharedRemote) SetProduct(_ context.Context, p *models.Product, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = *p
	return nil
}

func (r *sharedRemote) InvalidateProduct(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

type localTier struct{ c *cache.ProductCache }

func (l localTier) InvalidateCache(_ context.Context, id string) error {
	l.c.EvictLocal(id)
	return nil
}

func TestProductEventEvictsOtherInstance(t *testing.T) {
	remote := &sharedRemote{products: make(map[string]models.Product)}
	instanceA := cache.NewProductCache(remote, 100, time.Hour)
	instanceB := cache.NewProductCache(remote, 100, time.Hour)
	handlerB := NewCatalogEventHandler(localTier{instanceB}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, instanceA.SetProduct(ctx, &models.Product{ID: "p1", Title: "Gold Balloons"}, time.Minute))
	p, err := instanceB.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "Gold Balloons", p.Title)

	// instance A renames the product and announces it
	require.NoError(t, instanceA.InvalidateProduct(ctx, "p1"))
	require.NoError(t, instanceA.SetProduct(ctx, &models.Product{ID: "p1", Title: "Rose Gold Balloons"}, time.Minute))

	p, err = instanceB.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Gold Balloons", p.Title)

	require.NoError(t, handlerB.HandleMessage(ctx, encode(t, &models.ProductChangedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeProductUpdated),
		ProductID: "p1",
	})))

	p, err = instanceB.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Rose Gold Balloons", p.Title)
}
