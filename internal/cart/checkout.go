package cart

import (
	"strings"

	"partyshop/internal/apperr"
	"partyshop/internal/models"
	"partyshop/internal/pricing"

	"github.com/shopspring/decimal"
)

// AddressSelection picks a saved address by index or carries a manually entered one.
type AddressSelection struct {
	SavedIndex *int            `json:"savedIndex,omitempty"`
	Manual     *models.Address `json:"manual,omitempty"`
}

// CheckoutRequest is what the shopper submits at checkout.
type CheckoutRequest struct {
	UserID         string           `json:"user" binding:"required"`
	Address        AddressSelection `json:"address"`
	PaymentMethod  string           `json:"paymentMethod" binding:"required"`
	CouponCode     string           `json:"couponCode,omitempty"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
}

// Quote is a priced cart. CouponError is set when a code was given but not recognised.
type Quote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Shipping    decimal.Decimal `json:"shippingPrice"`
	Total       decimal.Decimal `json:"total"`
	CouponError string          `json:"couponError,omitempty"`
}

// Assembler prices carts and converts them into order payloads.
type Assembler struct {
	Coupons       *pricing.CouponBook
	ShippingPrice decimal.Decimal
}

// Quote prices items. An unknown coupon leaves the subtotal unchanged and is reported, not returned.
func (a *Assembler) Quote(items []LineItem, couponCode string) Quote {
	subtotal := Subtotal(items)
	q := Quote{Subtotal: subtotal, Discount: decimal.Zero, Shipping: a.ShippingPrice}

	discount, err := a.Coupons.Discount(subtotal, couponCode)
	if err != nil {
		q.CouponError = apperr.Message(err)
	} else {
		q.Discount = discount
	}
	q.Total = subtotal.Sub(q.Discount).Add(q.Shipping)
	return q
}

// ResolveAddress picks the shipping address from a saved selection or a complete manual entry.
func ResolveAddress(sel AddressSelection, saved []models.Address) (models.Address, error) {
	if sel.SavedIndex != nil {
		idx := *sel.SavedIndex
		if idx < 0 || idx >= len(saved) {
			return models.Address{}, apperr.NotFound("address not found: %d", idx)
		}
		return saved[idx], nil
	}
	if sel.Manual != nil && sel.Manual.Complete() {
		return *sel.Manual, nil
	}
	return models.Address{}, apperr.Validation("missing address")
}

// ToOrderPayload converts items into an order-creation payload.
func (a *Assembler) ToOrderPayload(items []LineItem, req CheckoutRequest, saved []models.Address) (*models.OrderPayload, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, apperr.Validation("payment method required")
	}
	addr, err := ResolveAddress(req.Address, saved)
	if err != nil {
		return nil, err
	}

	subtotal := Subtotal(items)
	discount, err := a.Coupons.Discount(subtotal, req.CouponCode)
	if err != nil {
		return nil, err
	}

	payload := &models.OrderPayload{
		UserID:          req.UserID,
		OrderItems:      make([]models.PayloadItem, 0, len(items)),
		ShippingAddress: addr,
		PaymentMethod:   req.PaymentMethod,
		ShippingPrice:   a.ShippingPrice,
		CouponCode:      req.CouponCode,
		Discount:        discount,
		TotalAmount:     subtotal.Sub(discount).Add(a.ShippingPrice),
		IdempotencyKey:  req.IdempotencyKey,
	}
	for _, it := range items {
		payload.OrderItems = append(payload.OrderItems, models.PayloadItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			Price:     it.Price(),
			Quantity:  it.Quantity,
			Color:     it.Color,
			Size:      it.Size,
			SKU:       it.SKU,
			Image:     it.ChosenImage,
		})
	}
	return payload, nil
}
