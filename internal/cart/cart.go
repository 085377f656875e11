// Package cart holds shopping cart line items and turns them into order payloads.
package cart

import (
	"partyshop/internal/apperr"
	"partyshop/internal/models"
	"partyshop/internal/pricing"
	"partyshop/internal/storefront"

	"github.com/shopspring/decimal"
)

// Key identifies a line item. Two items with the same key are merged.
type Key struct {
	ProductID string `json:"productId" binding:"required"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// LineItem is one product variant and quantity in a cart.
type LineItem struct {
	ProductID     string              `json:"productId"`
	Title         string              `json:"title"`
	Color         string              `json:"color,omitempty"`
	Size          string              `json:"size,omitempty"`
	SKU           string              `json:"sku,omitempty"`
	UnitPrice     decimal.NullDecimal `json:"unitPrice"`
	FallbackPrice decimal.NullDecimal `json:"fallbackPrice"`
	Quantity      int                 `json:"quantity"`
	ChosenImage   string              `json:"chosenImage,omitempty"`
}

func (i LineItem) Key() Key {
	return Key{ProductID: i.ProductID, Color: i.Color, Size: i.Size}
}

// Price is the unit price, else the product's first variant price, else zero.
func (i LineItem) Price() decimal.Decimal {
	if i.UnitPrice.Valid {
		return i.UnitPrice.Decimal
	}
	if i.FallbackPrice.Valid {
		return i.FallbackPrice.Decimal
	}
	return decimal.Zero
}

// NewLineItem builds a line item for variant v of p. v is nil for products without variants.
// The chosen image is resolved now and never re-resolved.
func NewLineItem(p *models.Product, v *models.Variant, quantity int) (LineItem, error) {
	if quantity < 1 {
		return LineItem{}, apperr.Validation("quantity must be at least 1")
	}

	sel := storefront.Original()
	item := LineItem{
		ProductID: p.ID,
		Title:     p.Title,
		Quantity:  quantity,
	}
	if len(p.Variants) > 0 {
		item.FallbackPrice = decimal.NewNullDecimal(p.Variants[0].Price)
	}
	if v != nil {
		item.Color = v.Color
		item.Size = v.Size
		item.SKU = v.SKU
		item.UnitPrice = decimal.NewNullDecimal(v.Price)
		sel = storefront.Selection{State: storefront.ColorSizeSelected, Color: v.Color, Size: v.Size}
	}
	item.ChosenImage = storefront.PrimaryImage(p, sel)
	return item, nil
}

// Merge adds item to items, summing quantities when the key already exists.
func Merge(items []LineItem, item LineItem) []LineItem {
	out := append([]LineItem(nil), items...)
	for i := range out {
		if out[i].Key() == item.Key() {
			out[i].Quantity += item.Quantity
			return out
		}
	}
	return append(out, item)
}

// ApplyDelta changes the quantity of key by delta. An item reaching zero or less is removed.
func ApplyDelta(items []LineItem, key Key, delta int) ([]LineItem, error) {
	out := append([]LineItem(nil), items...)
	for i := range out {
		if out[i].Key() != key {
			continue
		}
		out[i].Quantity += delta
		if out[i].Quantity <= 0 {
			return append(out[:i], out[i+1:]...), nil
		}
		return out, nil
	}
	return items, apperr.NotFound("cart item not found: %s", key.ProductID)
}

// Remove drops the item with exactly key.
func Remove(items []LineItem, key Key) ([]LineItem, bool) {
	out := make([]LineItem, 0, len(items))
	removed := false
	for _, it := range items {
		if it.Key() == key {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

// Subtotal sums price × quantity.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(pricing.LineTotal(it.Price(), it.Quantity))
	}
	return total
}
