package broker

import (
	"context"
	"encoding/json"
	"testing"

	"partyshop/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestHandleMessageRoutesProductEvents(t *testing.T) {
	var got []string
	eh := NewEventHandler()
	eh.OnProductChanged(func(_ context.Context, e *models.ProductChangedEvent) error {
		got = append(got, e.EventType+":"+e.ProductID)
		return nil
	})

	for _, typ := range []string{models.EventTypeProductCreated, models.EventTypeProductUpdated, models.EventTypeProductDeleted} {
		ev := &models.ProductChangedEvent{BaseEvent: NewBaseEvent(typ), ProductID: "p1"}
		require.NoError(t, eh.HandleMessage(context.Background(), message(t, ev)))
	}

	assert.Equal(t, []string{
		"PRODUCT_CREATED:p1",
		"PRODUCT_UPDATED:p1",
		"PRODUCT_DELETED:p1",
	}, got)
}

func TestHandleMessageRoutesCategoryDeleted(t *testing.T) {
	var got *models.CategoryDeletedEvent
	eh := NewEventHandler()
	eh.OnCategoryDeleted(func(_ context.Context, e *models.CategoryDeletedEvent) error {
		got = e
		return nil
	})

	ev := &models.CategoryDeletedEvent{
		BaseEvent:  NewBaseEvent(models.EventTypeCategoryDeleted),
		CategoryID: "c1",
		ProductIDs: []string{"p1", "p2"},
	}
	require.NoError(t, eh.HandleMessage(context.Background(), message(t, ev)))
	require.NotNil(t, got)
	assert.Equal(t, []string{"p1", "p2"}, got.ProductIDs)
}

func TestHandleMessageIgnoresUnknownAndUnregistered(t *testing.T) {
	eh := NewEventHandler()

	ev := &models.OrderCreatedEvent{BaseEvent: NewBaseEvent(models.EventTypeOrderCreated), OrderID: 1}
	assert.NoError(t, eh.HandleMessage(context.Background(), message(t, ev)))

	pc := &models.ProductChangedEvent{BaseEvent: NewBaseEvent(models.EventTypeProductUpdated)}
	assert.NoError(t, eh.HandleMessage(context.Background(), message(t, pc)))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()
	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
