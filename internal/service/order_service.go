package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"partyshop/internal/apperr"
	"partyshop/internal/broker"
	"partyshop/internal/models"
	"partyshop/internal/pricing"
	"partyshop/internal/storefront"
	"partyshop/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultOrderLockTTL bounds how long one idempotency key is held by a placement in flight
const DefaultOrderLockTTL = 30 * time.Second

// OrderService handles order business logic
type OrderService struct {
	orders         OrderRepository
	catalog        *CatalogService
	locker         Locker
	eventPublisher OrderPublisher
	coupons        *pricing.CouponBook
	shippingPrice  decimal.Decimal
	lockTTL        time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderRepository,
	catalog *CatalogService,
	locker Locker,
	eventPublisher OrderPublisher,
	coupons *pricing.CouponBook,
	shippingPrice decimal.Decimal,
	lockTTL time.Duration,
) *OrderService {
	if lockTTL <= 0 {
		lockTTL = DefaultOrderLockTTL
	}
	return &OrderService{
		orders:         orders,
		catalog:        catalog,
		locker:         locker,
		eventPublisher: eventPublisher,
		coupons:        coupons,
		shippingPrice:  shippingPrice,
		lockTTL:        lockTTL,
		logger:         util.GetLogger(),
	}
}

// CreateOrder places an order from a payload. Prices and totals are recomputed from the catalog;
// the payload's amounts are advisory. The bool result is false when an order with the same
// idempotency key already existed and was returned instead.
func (s *OrderService) CreateOrder(ctx context.Context, payload *models.OrderPayload) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	if payload.IdempotencyKey == "" {
		payload.IdempotencyKey = uuid.New().String()
	}

	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, payload.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logDuplicate(payload.IdempotencyKey, existing.ID)
		return existing, false, nil
	}

	lockKey := "order:" + payload.IdempotencyKey
	locked, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("lock_error").Inc()
		return nil, false, apperr.Upstream(err, "failed to acquire order lock")
	}
	if !locked {
		util.OrdersFailedTotal.WithLabelValues("in_flight").Inc()
		return nil, false, apperr.Conflict("order %s is already being placed", payload.IdempotencyKey)
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), lockKey); err != nil {
			s.logger.Warn("Failed to release order lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	order, err := s.buildOrder(ctx, payload)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, false, err
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			if existing, _ := s.orders.GetOrderByIdempotencyKey(ctx, payload.IdempotencyKey); existing != nil {
				s.logDuplicate(payload.IdempotencyKey, existing.ID)
				return existing, false, nil
			}
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total_price", order.TotalPrice.StringFixed(2)))

	itemData := make([]models.OrderItemData, 0, len(order.Items))
	for _, it := range order.Items {
		itemData = append(itemData, models.OrderItemData{
			ProductID: it.ProductID,
			Color:     it.Color,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Items:      itemData,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, true, nil
}

// buildOrder freezes authoritative prices and totals for payload.
func (s *OrderService) buildOrder(ctx context.Context, payload *models.OrderPayload) (*models.Order, error) {
	if strings.TrimSpace(payload.UserID) == "" {
		return nil, apperr.Validation("user is required")
	}
	if strings.TrimSpace(payload.PaymentMethod) == "" {
		return nil, apperr.Validation("payment method required")
	}
	if len(payload.OrderItems) == 0 {
		return nil, apperr.Validation("order has no items")
	}
	if !payload.ShippingAddress.Complete() {
		return nil, apperr.Validation("missing address")
	}

	items := make([]models.OrderItem, 0, len(payload.OrderItems))
	subtotal := decimal.Zero
	for _, pi := range payload.OrderItems {
		item, err := s.resolveItem(ctx, pi)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(item.Subtotal())
		items = append(items, item)
	}

	discount, err := s.coupons.Discount(subtotal, payload.CouponCode)
	if err != nil {
		return nil, err
	}
	total := subtotal.Sub(discount).Add(s.shippingPrice)

	if !payload.TotalAmount.IsZero() && !payload.TotalAmount.Equal(total) {
		s.logger.Warn("Client order total differs from computed total",
			zap.String("client_total", payload.TotalAmount.StringFixed(2)),
			zap.String("computed_total", total.StringFixed(2)),
			zap.String("idempotency_key", payload.IdempotencyKey))
	}

	return &models.Order{
		UserID:          payload.UserID,
		ShippingAddress: payload.ShippingAddress,
		PaymentMethod:   payload.PaymentMethod,
		Status:          models.OrderStatusProcessing,
		Subtotal:        subtotal,
		Discount:        discount,
		ShippingPrice:   s.shippingPrice,
		TotalPrice:      total,
		CouponCode:      strings.ToUpper(strings.TrimSpace(payload.CouponCode)),
		IdempotencyKey:  payload.IdempotencyKey,
		Items:           items,
	}, nil
}

// resolveItem prices one payload line from the product document. A line naming a color/size must
// match a variant; a line without one takes the first variant, or zero for variantless products.
func (s *OrderService) resolveItem(ctx context.Context, pi models.PayloadItem) (models.OrderItem, error) {
	if pi.Quantity < 1 {
		return models.OrderItem{}, apperr.Validation("quantity must be at least 1")
	}

	p, err := s.catalog.FindByID(ctx, pi.ProductID)
	if err != nil {
		return models.OrderItem{}, err
	}

	item := models.OrderItem{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     decimal.Zero,
		Quantity:  pi.Quantity,
		Image:     pi.Image,
	}

	sel := storefront.Original()
	if pi.Color != "" || pi.Size != "" {
		key := models.VariantKey{Color: pi.Color, Size: pi.Size}
		v, ok := p.FindVariant(key)
		if !ok {
			return models.OrderItem{}, apperr.NotFound("variant %s not found for product %s", key, p.ID)
		}
		item.Color, item.Size, item.SKU, item.Price = v.Color, v.Size, v.SKU, v.Price
		sel = storefront.Selection{State: storefront.ColorSizeSelected, Color: v.Color, Size: v.Size}
	} else if len(p.Variants) > 0 {
		item.Price = p.Variants[0].Price
	}

	if item.Image == "" {
		item.Image = storefront.PrimaryImage(p, sel)
	}
	return item, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.orders.GetOrderByID(ctx, orderID)
}

// ListOrders lists orders newest first; an empty userID lists every order
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.orders.ListOrders(ctx, userID)
}

// UpdateStatus moves an order to status. Setting the current status again is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidOrderStatus(status) {
		return nil, apperr.Validation(fmt.Sprintf("unknown order status: %s", status))
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if !models.CanTransition(order.Status, status) {
		return nil, apperr.Conflict("cannot move order %d from %s to %s", orderID, order.Status, status)
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	from := order.Status
	order.Status = status

	util.OrderStatusTransitionsTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", from),
		zap.String("to", status))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		From:      from,
		To:        status,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
	return order, nil
}

// FindByIdempotencyKey returns the order placed under key, or nil when there is none
func (s *OrderService) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.FindByIdempotencyKey")
	defer span.End()

	order, err := s.orders.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	return order, nil
}

func (s *OrderService) logDuplicate(key string, orderID int64) {
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", orderID))
}
