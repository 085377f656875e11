package pricing

import (
	"strings"

	"partyshop/internal/apperr"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places money is stored with.
const Places = 2

var hundred = decimal.NewFromInt(100)

// IsCents reports whether d is stored without rounding.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(Places))
}

// DiscountPercent returns the rounded strikethrough discount, or 0 when compareAt does not exceed price.
func DiscountPercent(price, compareAt decimal.Decimal) int {
	if !compareAt.GreaterThan(price) || !compareAt.IsPositive() {
		return 0
	}
	pct := compareAt.Sub(price).Div(compareAt).Mul(hundred).Round(0)
	return int(pct.IntPart())
}

// LineTotal returns price × quantity.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// CouponBook holds the recognised coupon codes and their percentage discounts.
type CouponBook struct {
	codes map[string]decimal.Decimal
}

// NewCouponBook creates a book with a single recognised code.
func NewCouponBook(code string, percent decimal.Decimal) *CouponBook {
	b := &CouponBook{codes: make(map[string]decimal.Decimal)}
	if code = normalizeCode(code); code != "" {
		b.codes[code] = percent
	}
	return b
}

// Discount returns the discount a code grants on subtotal.
// An empty code grants nothing; an unknown code fails with a validation error.
func (b *CouponBook) Discount(subtotal decimal.Decimal, code string) (decimal.Decimal, error) {
	code = normalizeCode(code)
	if code == "" {
		return decimal.Zero, nil
	}
	percent, ok := b.codes[code]
	if !ok {
		return decimal.Zero, apperr.Validation("invalid coupon code")
	}
	return subtotal.Mul(percent).Div(hundred).Round(Places), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
