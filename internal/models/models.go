package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Image is a product picture. Src is the path returned by file storage.
type Image struct {
	Src      string `json:"src"`
	Position int    `json:"position"`
}

// Color is one color option of a product with its ordered size list.
type Color struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Hex   string   `json:"hex"`
	Sizes []string `json:"sizes"`
}

// HasSize reports whether the color offers size.
func (c Color) HasSize(size string) bool {
	for _, s := range c.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// VariantKey identifies a variant within a product.
type VariantKey struct {
	Color string `json:"color"`
	Size  string `json:"size"`
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%s-%s", k.Color, k.Size)
}

// Variant is a purchasable color/size combination.
type Variant struct {
	Color          string          `json:"color"`
	Size           string          `json:"size"`
	SKU            string          `json:"sku"`
	Price          decimal.Decimal `json:"price"`
	CompareAtPrice decimal.Decimal `json:"compareAtPrice"`
	InventoryQty   int             `json:"inventoryQty"`
	Option1        string          `json:"option1,omitempty"`
	Option2        string          `json:"option2,omitempty"`
}

func (v Variant) Key() VariantKey {
	return VariantKey{Color: v.Color, Size: v.Size}
}

// VariantImages groups the images of a single variant.
type VariantImages struct {
	Color  string  `json:"color"`
	Size   string  `json:"size"`
	Images []Image `json:"images"`
}

func (g VariantImages) Key() VariantKey {
	return VariantKey{Color: g.Color, Size: g.Size}
}

// ColorImages groups the legacy per-color images.
type ColorImages struct {
	Color  string  `json:"color"`
	Images []Image `json:"images"`
}

// Product is the catalog document.
type Product struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Handle        string          `json:"handle"`
	Description   string          `json:"description"`
	Vendor        string          `json:"vendor"`
	Category      string          `json:"category"`
	Type          string          `json:"type"`
	Tags          []string        `json:"tags"`
	Colors        []Color         `json:"colors"`
	Variants      []Variant       `json:"variants"`
	Images        []Image         `json:"images"`
	ColorImages   []ColorImages   `json:"colorImages"`
	VariantImages []VariantImages `json:"variantImages"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// FindColor returns the color named name.
func (p *Product) FindColor(name string) (*Color, bool) {
	for i := range p.Colors {
		if p.Colors[i].Name == name {
			return &p.Colors[i], true
		}
	}
	return nil, false
}

// FindVariant returns the variant keyed by key.
func (p *Product) FindVariant(key VariantKey) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Key() == key {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// ImagesForVariant returns the images attached to the variant keyed by key.
func (p *Product) ImagesForVariant(key VariantKey) []Image {
	for _, g := range p.VariantImages {
		if g.Key() == key {
			return g.Images
		}
	}
	return nil
}

// ImagesForColor returns the legacy color images of color.
func (p *Product) ImagesForColor(color string) []Image {
	for _, g := range p.ColorImages {
		if g.Color == color {
			return g.Images
		}
	}
	return nil
}

// ProductFilter narrows a catalog listing. Each slice is an OR-set; sets combine with AND.
type ProductFilter struct {
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Vendors    []string
	Categories []string
	Tags       []string
	Limit      int
	Offset     int
}

// Category groups products by name.
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Products  []string  `db:"-" json:"products"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Address is a shipping address. It is stored as a JSONB column.
type Address struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Complete reports whether the fields required for delivery are present.
func (a Address) Complete() bool {
	for _, f := range []string{a.Name, a.Email, a.Phone, a.Street} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = Address{}
		return nil
	default:
		return fmt.Errorf("unsupported address type %T", src)
	}
}

// Order is a placed customer order.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user"`
	ShippingAddress Address         `db:"shipping_address" json:"shippingAddress"`
	PaymentMethod   string          `db:"payment_method" json:"paymentMethod"`
	Status          string          `db:"status" json:"orderStatus"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount        decimal.Decimal `db:"discount" json:"discount"`
	ShippingPrice   decimal.Decimal `db:"shipping_price" json:"shippingPrice"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"totalPrice"`
	CouponCode      string          `db:"coupon_code" json:"couponCode,omitempty"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	Items           []OrderItem     `db:"-" json:"orderItems"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem is a frozen copy of a cart line at order time.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"orderId"`
	ProductID string          `db:"product_id" json:"product"`
	Title     string          `db:"title" json:"title"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Color     string          `db:"color" json:"color,omitempty"`
	Size      string          `db:"size" json:"size,omitempty"`
	SKU       string          `db:"sku" json:"sku,omitempty"`
	Image     string          `db:"image" json:"image,omitempty"`
}

// Subtotal returns price × quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order statuses
const (
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

var orderTransitions = map[string][]string{
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

// ValidOrderStatus reports whether status is one of the four known labels.
func ValidOrderStatus(status string) bool {
	_, ok := orderTransitions[status]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderPayload is the order-creation request built from a cart snapshot.
// Item prices and TotalAmount are advisory; the server recomputes them.
type OrderPayload struct {
	UserID          string          `json:"user" binding:"required"`
	OrderItems      []PayloadItem   `json:"orderItems" binding:"required,min=1,dive"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod" binding:"required"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Discount        decimal.Decimal `json:"discount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty"`
}

// PayloadItem is one line of an OrderPayload.
type PayloadItem struct {
	ProductID string          `json:"product" binding:"required"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	Image     string          `json:"image,omitempty"`
}
