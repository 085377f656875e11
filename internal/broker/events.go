package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"partyshop/internal/models"
	"partyshop/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewBaseEvent stamps an event envelope with a fresh id and the current time
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// EventPublisher handles publishing domain events. Catalog and order events go to separate topics.
type EventPublisher struct {
	catalog *Producer
	orders  *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(catalog, orders *Producer) *EventPublisher {
	return &EventPublisher{catalog: catalog, orders: orders}
}

// PublishProductChanged publishes a product create/update/delete event
func (ep *EventPublisher) PublishProductChanged(ctx context.Context, event *models.ProductChangedEvent) error {
	key := fmt.Sprintf("product-%s", event.ProductID)
	return ep.catalog.PublishEvent(ctx, key, event)
}

// PublishCategoryDeleted publishes CategoryDeleted event
func (ep *EventPublisher) PublishCategoryDeleted(ctx context.Context, event *models.CategoryDeletedEvent) error {
	key := fmt.Sprintf("category-%s", event.CategoryID)
	return ep.catalog.PublishEvent(ctx, key, event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// EventHandler routes catalog events to registered callbacks
type EventHandler struct {
	onProductChanged  func(context.Context, *models.ProductChangedEvent) error
	onCategoryDeleted func(context.Context, *models.CategoryDeletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnProductChanged registers a handler for product create, update and delete events
func (eh *EventHandler) OnProductChanged(handler func(context.Context, *models.ProductChangedEvent) error) {
	eh.onProductChanged = handler
}

// OnCategoryDeleted registers a handler for CategoryDeleted events
func (eh *EventHandler) OnCategoryDeleted(handler func(context.Context, *models.CategoryDeletedEvent) error) {
	eh.onCategoryDeleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeProductCreated, models.EventTypeProductUpdated, models.EventTypeProductDeleted:
		if eh.onProductChanged != nil {
			var event models.ProductChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductChanged event: %w", err)
			}
			return eh.onProductChanged(ctx, &event)
		}

	case models.EventTypeCategoryDeleted:
		if eh.onCategoryDeleted != nil {
			var event models.CategoryDeletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CategoryDeleted event: %w", err)
			}
			return eh.onCategoryDeleted(ctx, &event)
		}

	default:
		logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
