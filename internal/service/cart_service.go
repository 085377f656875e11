package service

import (
	"context"
	"strings"

	"partyshop/internal/apperr"
	"partyshop/internal/cart"
	"partyshop/internal/composer"
	"partyshop/internal/models"
	"partyshop/internal/storefront"
	"partyshop/internal/util"

	"go.uber.org/zap"
)

// CartService handles server-side carts and checkout
type CartService struct {
	manager     *cart.Manager
	assembler   *cart.Assembler
	catalog     *CatalogService
	orders      *OrderService
	addresses   AddressRepository
	unsubscribe func()
	logger      *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(
	manager *cart.Manager,
	assembler *cart.Assembler,
	catalog *CatalogService,
	orders *OrderService,
	addresses AddressRepository,
) *CartService {
	s := &CartService{
		manager:   manager,
		assembler: assembler,
		catalog:   catalog,
		orders:    orders,
		addresses: addresses,
		logger:    util.GetLogger(),
	}
	s.unsubscribe = manager.Subscribe(s.onCartEvent)
	return s
}

// Close stops listening to cart events
func (s *CartService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *CartService) onCartEvent(ev cart.Event) {
	if ev.Kind == cart.EventAdded {
		util.CartItemsAddedTotal.Inc()
	}
	s.logger.Debug("Cart changed",
		zap.String("cart_id", ev.CartID),
		zap.String("kind", string(ev.Kind)),
		zap.String("product_id", ev.Key.ProductID),
		zap.Int("items", len(ev.Items)))
}

// CartView is a cart with its price breakdown
type CartView struct {
	CartID string          `json:"cartId"`
	Items  []cart.LineItem `json:"items"`
	Quote  cart.Quote      `json:"quote"`
}

// AddItemRequest adds quantity of a product variant. Without color and size the product's
// initial storefront selection is used.
type AddItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// UpdateItemRequest changes the quantity of one line by Delta
type UpdateItemRequest struct {
	cart.Key
	Delta int `json:"delta"`
}

func (s *CartService) view(cartID string, items []cart.LineItem, couponCode string) *CartView {
	if items == nil {
		items = []cart.LineItem{}
	}
	return &CartView{CartID: cartID, Items: items, Quote: s.assembler.Quote(items, couponCode)}
}

// Get returns the cart priced with an optional coupon code
func (s *CartService) Get(ctx context.Context, cartID, couponCode string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	items, err := s.manager.Items(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.view(cartID, items, couponCode), nil
}

// AddItem resolves the product variant, freezes its image and merges the line into the cart
func (s *CartService) AddItem(ctx context.Context, cartID string, req AddItemRequest) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	p, err := s.catalog.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	var variant *models.Variant
	if req.Color != "" || req.Size != "" {
		v, ok := p.FindVariant(models.VariantKey{Color: req.Color, Size: req.Size})
		if !ok {
			v, ok = p.FindVariant(models.VariantKey{Color: req.Color, Size: composer.NormalizeSize(req.Size)})
		}
		if !ok {
			return nil, apperr.NotFound("variant %s-%s not found for product %s", req.Color, req.Size, p.ID)
		}
		variant = v
	} else {
		variant = storefront.ActiveVariant(p, storefront.Initial(p))
	}

	line, err := cart.NewLineItem(p, variant, req.Quantity)
	if err != nil {
		return nil, err
	}

	items, err := s.manager.Add(ctx, cartID, line)
	if err != nil {
		return nil, err
	}
	return s.view(cartID, items, ""), nil
}

// UpdateItem changes a line's quantity by a delta; a line reaching zero is removed
func (s *CartService) UpdateItem(ctx context.Context, cartID string, req UpdateItemRequest) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	items, err := s.manager.UpdateQuantity(ctx, cartID, req.Key, req.Delta)
	if err != nil {
		return nil, err
	}
	return s.view(cartID, items, ""), nil
}

// RemoveItem removes the line with exactly key
func (s *CartService) RemoveItem(ctx context.Context, cartID string, key cart.Key) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	items, err := s.manager.Remove(ctx, cartID, key)
	if err != nil {
		return nil, err
	}
	return s.view(cartID, items, ""), nil
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, cartID string) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	return s.manager.Clear(ctx, cartID)
}

// Checkout turns the cart into an order. The cart is cleared only once the order exists.
func (s *CartService) Checkout(ctx context.Context, cartID string, req cart.CheckoutRequest) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Checkout")
	defer span.End()

	// a replayed key answers with the placed order; the cart was already emptied by then
	if req.IdempotencyKey != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.orders.logDuplicate(req.IdempotencyKey, existing.ID)
			util.CartCheckoutsTotal.WithLabelValues("replayed").Inc()
			return existing, false, nil
		}
	}

	items, err := s.manager.Items(ctx, cartID)
	if err != nil {
		return nil, false, err
	}

	var saved []models.Address
	if req.Address.SavedIndex != nil {
		saved, err = s.addresses.ListAddresses(ctx, req.UserID)
		if err != nil {
			return nil, false, err
		}
	}

	payload, err := s.assembler.ToOrderPayload(items, req, saved)
	if err != nil {
		util.CartCheckoutsTotal.WithLabelValues("rejected").Inc()
		return nil, false, err
	}

	order, created, err := s.orders.CreateOrder(ctx, payload)
	if err != nil {
		util.CartCheckoutsTotal.WithLabelValues("failed").Inc()
		return nil, false, err
	}

	if err := s.manager.Clear(ctx, cartID); err != nil {
		s.logger.Error("Failed to clear cart after checkout",
			zap.String("cart_id", cartID),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	util.CartCheckoutsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Cart checked out",
		zap.String("cart_id", cartID),
		zap.Int64("order_id", order.ID))
	return order, created, nil
}

// ListAddresses returns a user's saved addresses; checkout refers to them by index
func (s *CartService) ListAddresses(ctx context.Context, userID string) ([]models.Address, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ListAddresses")
	defer span.End()

	return s.addresses.ListAddresses(ctx, userID)
}

// SaveAddress stores a complete address for later checkouts
func (s *CartService) SaveAddress(ctx context.Context, userID string, addr models.Address) ([]models.Address, error) {
	ctx, span := util.StartSpan(ctx, "CartService.SaveAddress")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user is required")
	}
	if !addr.Complete() {
		return nil, apperr.Validation("address requires name, email, phone and street")
	}
	if err := s.addresses.AddAddress(ctx, userID, addr); err != nil {
		return nil, err
	}
	return s.addresses.ListAddresses(ctx, userID)
}
