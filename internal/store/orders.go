package store

import (
	"context"
	"fmt"

	"partyshop/internal/apperr"
	"partyshop/internal/models"
)

// CreateOrder inserts an order and its items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Upstream(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (user_id, shipping_address, payment_method, status, subtotal, discount,
			shipping_price, total_price, coupon_code, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.UserID, order.ShippingAddress, order.PaymentMethod, order.Status, order.Subtotal,
		order.Discount, order.ShippingPrice, order.TotalPrice, order.CouponCode, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return classify(err, fmt.Sprintf("order with idempotency key %s already exists", order.IdempotencyKey), "")
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, title, price, quantity, color, size, sku, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := tx.GetContext(ctx, &item.ID, itemQuery,
			item.OrderID, item.ProductID, item.Title, item.Price, item.Quantity,
			item.Color, item.Size, item.SKU, item.Image); err != nil {
			return classify(err, "", "")
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Upstream(err, "failed to commit order")
	}
	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, classify(err, "", fmt.Sprintf("order not found: %d", id))
	}

	items, err := s.GetOrderItemsByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, nil when absent
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err != nil {
		err = classify(err, "", "order not found")
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}

	items, err := s.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return classify(err, "", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order not found: %d", orderID)
	}
	return nil
}

// ListOrders retrieves orders newest first, optionally for one user
func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	var err error
	if userID == "" {
		err = s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	}
	if err != nil {
		return nil, classify(err, "", "")
	}
	return orders, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, classify(err, "", "")
	}
	return items, nil
}
