package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"partyshop/internal/apperr"
	"partyshop/internal/models"
	"partyshop/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderHarness struct {
	*catalogHarness
	orders  *fakeOrders
	locker  *fakeLocker
	product *models.Product
	svc     *OrderService
}

func newOrderHarness(t *testing.T) *orderHarness {
	ch := newCatalogHarness()
	h := &orderHarness{
		catalogHarness: ch,
		orders:         newFakeOrders(),
		locker:         newFakeLocker(),
	}
	h.svc = NewOrderService(h.orders, ch.svc, h.locker, ch.events,
		pricing.NewCouponBook("PARTY10", decimal.NewFromInt(10)), decimal.Zero, time.Minute)

	p, err := ch.svc.CreateProduct(context.Background(), balloonInput())
	require.NoError(t, err)
	h.product = p
	return h
}

func testAddress() models.Address {
	return models.Address{Name: "Ana", Email: "ana@example.com", Phone: "555-0101", Street: "1 Main St"}
}

// payload orders 2 × Gold/M at 100 and 1 × Gold/L at 50, with client prices that are wrong on purpose.
func (h *orderHarness) payload() *models.OrderPayload {
	return &models.OrderPayload{
		UserID: "user-1",
		OrderItems: []models.PayloadItem{
			{ProductID: h.product.ID, Color: "Gold", Size: "M", Quantity: 2, Price: money("1")},
			{ProductID: h.product.ID, Color: "Gold", Size: "L", Quantity: 1, Price: money("1")},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   "cash on delivery",
		TotalAmount:     money("3"),
	}
}

func TestCreateOrderRecomputesTotals(t *testing.T) {
	h := newOrderHarness(t)

	order, created, err := h.svc.CreateOrder(context.Background(), h.payload())
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.True(t, order.Subtotal.Equal(money("250")), order.Subtotal.String())
	assert.True(t, order.TotalPrice.Equal(money("250")), order.TotalPrice.String())
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].Price.Equal(money("100")))
	assert.Equal(t, "FB-G-M", order.Items[0].SKU)
	assert.Equal(t, "Foil Balloon Set", order.Items[0].Title)
	assert.Equal(t, "general.jpg", order.Items[0].Image)
	assert.Equal(t, "gold-l.jpg", order.Items[1].Image)
	assert.NotEmpty(t, order.IdempotencyKey)
	assert.Contains(t, h.events.Events(), models.EventTypeOrderCreated)
}

func TestCreateOrderAppliesCoupon(t *testing.T) {
	h := newOrderHarness(t)
	payload := h.payload()
	payload.CouponCode = "party10"

	order, _, err := h.svc.CreateOrder(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, order.Discount.Equal(money("25")))
	assert.True(t, order.TotalPrice.Equal(money("225")))
	assert.Equal(t, "PARTY10", order.CouponCode)

	payload = h.payload()
	payload.CouponCode = "FREESTUFF"
	_, _, err = h.svc.CreateOrder(context.Background(), payload)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreateOrderAddsShipping(t *testing.T) {
	h := newOrderHarness(t)
	h.svc.shippingPrice = money("7.50")

	order, _, err := h.svc.CreateOrder(context.Background(), h.payload())
	require.NoError(t, err)
	assert.True(t, order.ShippingPrice.Equal(money("7.50")))
	assert.True(t, order.TotalPrice.Equal(money("257.50")))
}

func TestCreateOrderIsIdempotent(t *testing.T) {
	h := newOrderHarness(t)
	ctx := context.Background()

	payload := h.payload()
	payload.IdempotencyKey = "checkout-42"
	first, created, err := h.svc.CreateOrder(ctx, payload)
	require.NoError(t, err)
	assert.True(t, created)

	retry := h.payload()
	retry.IdempotencyKey = "checkout-42"
	second, created, err := h.svc.CreateOrder(ctx, retry)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	all, err := h.svc.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, h.locker.held)
}

func TestCreateOrderRejectsConcurrentPlacement(t *testing.T) {
	h := newOrderHarness(t)
	ctx := context.Background()

	ok, err := h.locker.AcquireLock(ctx, "order:k1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	payload := h.payload()
	payload.IdempotencyKey = "k1"
	_, _, err = h.svc.CreateOrder(ctx, payload)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestCreateOrderRejectsBadItems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.OrderPayload)
		want   error
	}{
		{"unknown product", func(p *models.OrderPayload) { p.OrderItems[0].ProductID = "nope" }, apperr.ErrNotFound},
		{"unknown variant", func(p *models.OrderPayload) { p.OrderItems[0].Size = "XXL" }, apperr.ErrNotFound},
		{"zero quantity", func(p *models.OrderPayload) { p.OrderItems[1].Quantity = 0 }, apperr.ErrValidation},
		{"no items", func(p *models.OrderPayload) { p.OrderItems = nil }, apperr.ErrValidation},
		{"incomplete address", func(p *models.OrderPayload) { p.ShippingAddress.Phone = "" }, apperr.ErrValidation},
		{"no payment method", func(p *models.OrderPayload) { p.PaymentMethod = " " }, apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newOrderHarness(t)
			payload := h.payload()
			tt.mutate(payload)

			_, _, err := h.svc.CreateOrder(context.Background(), payload)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Empty(t, h.orders.byID)
		})
	}
}

func TestCreateOrderWithoutVariantUsesFirstVariantPrice(t *testing.T) {
	h := newOrderHarness(t)
	payload := h.payload()
	payload.OrderItems = []models.PayloadItem{{ProductID: h.product.ID, Quantity: 1}}

	order, _, err := h.svc.CreateOrder(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, order.TotalPrice.Equal(money("100")))
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  error
	}{
		{"ship then deliver", []string{"shipped", "delivered"}, nil},
		{"cancel while processing", []string{"cancelled"}, nil},
		{"same status is a no-op", []string{"processing"}, nil},
		{"skip shipping", []string{"delivered"}, apperr.ErrConflict},
		{"delivered is terminal", []string{"shipped", "delivered", "cancelled"}, apperr.ErrConflict},
		{"cancelled is terminal", []string{"cancelled", "shipped"}, apperr.ErrConflict},
		{"unknown label", []string{"lost"}, apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newOrderHarness(t)
			ctx := context.Background()
			order, _, err := h.svc.CreateOrder(ctx, h.payload())
			require.NoError(t, err)

			for _, status := range tt.steps {
				_, err = h.svc.UpdateStatus(ctx, order.ID, status)
				if err != nil {
					break
				}
			}
			if tt.want == nil {
				require.NoError(t, err)
				got, _ := h.svc.GetOrder(ctx, order.ID)
				assert.Equal(t, tt.steps[len(tt.steps)-1], got.Status)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestUpdateStatusPublishesEvent(t *testing.T) {
	h := newOrderHarness(t)
	ctx := context.Background()
	order, _, err := h.svc.CreateOrder(ctx, h.payload())
	require.NoError(t, err)

	updated, err := h.svc.UpdateStatus(ctx, order.ID, " Shipped ")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
	assert.Contains(t, h.events.Events(), models.EventTypeOrderStatusChanged)

	_, err = h.svc.UpdateStatus(ctx, 999, "shipped")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
