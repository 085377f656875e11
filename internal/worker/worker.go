package worker

import (
	"context"

	"partyshop/internal/broker"
	"partyshop/internal/models"
	"partyshop/internal/util"

	"go.uber.org/zap"
)

// CacheInvalidator drops cached product documents
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, productID string) error
}

// CatalogCacheWorker keeps this instance's product cache in step with catalog writes made anywhere
type CatalogCacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCatalogCacheWorker creates a new catalog cache worker
func NewCatalogCacheWorker(consumer *broker.Consumer, cache CacheInvalidator) *CatalogCacheWorker {
	w := &CatalogCacheWorker{
		consumer: consumer,
		logger:   util.GetLogger(),
	}
	w.eventHandler = NewCatalogEventHandler(cache, w.logger)
	return w
}

// NewCatalogEventHandler routes product and category events to cache invalidation
func NewCatalogEventHandler(cache CacheInvalidator, logger *zap.Logger) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnProductChanged(func(ctx context.Context, e *models.ProductChangedEvent) error {
		logger.Debug("Invalidating product",
			zap.String("product_id", e.ProductID),
			zap.String("type", e.EventType))
		return cache.InvalidateCache(ctx, e.ProductID)
	})

	eventHandler.OnCategoryDeleted(func(ctx context.Context, e *models.CategoryDeletedEvent) error {
		for _, id := range e.ProductIDs {
			if err := cache.InvalidateCache(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})

	return eventHandler
}

// Start starts the worker
func (w *CatalogCacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogCacheWorker) Stop() error {
	w.logger.Info("Stopping catalog cache worker")
	return w.consumer.Close()
}
