// Package storefront resolves a shopper's color/size selection against a catalog document.
package storefront

import (
	"sort"

	"partyshop/internal/apperr"
	"partyshop/internal/composer"
	"partyshop/internal/models"
	"partyshop/internal/pricing"

	"github.com/shopspring/decimal"
)

// State is the selection state of the product detail page.
type State int

const (
	NoColorSelected State = iota
	ColorSelected
	ColorSizeSelected
)

func (s State) String() string {
	switch s {
	case ColorSelected:
		return "color"
	case ColorSizeSelected:
		return "color_size"
	default:
		return "none"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Selection is the shopper's current choice. It is never persisted.
type Selection struct {
	State State  `json:"state"`
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

// Original is the no-variant selection.
func Original() Selection {
	return Selection{State: NoColorSelected}
}

// Initial returns the starting selection: the first named color, or Original when there is none.
func Initial(p *models.Product) Selection {
	for _, c := range p.Colors {
		if c.Name != "" {
			sel, _ := SelectColor(p, c.Name)
			return sel
		}
	}
	return Original()
}

// SelectColor selects a color and auto-selects its first size.
func SelectColor(p *models.Product, color string) (Selection, error) {
	c, ok := p.FindColor(color)
	if !ok || color == "" {
		return Original(), apperr.NotFound("color not found: %s", color)
	}
	if len(c.Sizes) == 0 {
		return Selection{State: ColorSelected, Color: c.Name}, nil
	}
	return Selection{State: ColorSizeSelected, Color: c.Name, Size: c.Sizes[0]}, nil
}

// SelectSize changes the size within the selected color. Labels match exactly
// first, then in the normalized form the composer stores them in.
func SelectSize(p *models.Product, sel Selection, size string) (Selection, error) {
	if sel.State == NoColorSelected {
		return sel, apperr.Validation("select a color first")
	}
	c, ok := p.FindColor(sel.Color)
	if !ok {
		return Original(), apperr.NotFound("color not found: %s", sel.Color)
	}
	if !c.HasSize(size) {
		normalized := composer.NormalizeSize(size)
		if !c.HasSize(normalized) {
			return sel, apperr.NotFound("size %s not offered in %s", size, sel.Color)
		}
		size = normalized
	}
	return Selection{State: ColorSizeSelected, Color: c.Name, Size: size}, nil
}

// Select builds a selection from optional query values: no color means the initial selection.
func Select(p *models.Product, color, size string) (Selection, error) {
	if color == "" {
		return Initial(p), nil
	}
	sel, err := SelectColor(p, color)
	if err != nil || size == "" {
		return sel, err
	}
	return SelectSize(p, sel, size)
}

// ActiveVariant resolves the variant for sel, falling back to the first declared variant.
// It returns nil when the product has no variants.
func ActiveVariant(p *models.Product, sel Selection) *models.Variant {
	if sel.State == ColorSizeSelected {
		if v, ok := p.FindVariant(models.VariantKey{Color: sel.Color, Size: sel.Size}); ok {
			return v
		}
	}
	if len(p.Variants) > 0 {
		return &p.Variants[0]
	}
	return nil
}

// Gallery lists variant images, then color images, then general images.
// Each tier is ordered by position and an src already listed is skipped.
func Gallery(p *models.Product, sel Selection) []models.Image {
	var tiers [][]models.Image
	if sel.State == ColorSizeSelected {
		tiers = append(tiers, p.ImagesForVariant(models.VariantKey{Color: sel.Color, Size: sel.Size}))
	}
	if sel.State != NoColorSelected {
		tiers = append(tiers, p.ImagesForColor(sel.Color))
	}
	tiers = append(tiers, p.Images)

	seen := make(map[string]struct{})
	gallery := make([]models.Image, 0)
	for _, tier := range tiers {
		for _, im := range byPosition(tier) {
			if _, dup := seen[im.Src]; dup {
				continue
			}
			seen[im.Src] = struct{}{}
			gallery = append(gallery, im)
		}
	}
	return gallery
}

// PrimaryImage is the first gallery image, or "" when there are no images at all.
func PrimaryImage(p *models.Product, sel Selection) string {
	g := Gallery(p, sel)
	if len(g) == 0 {
		return ""
	}
	return g[0].Src
}

func byPosition(images []models.Image) []models.Image {
	out := append([]models.Image(nil), images...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// View is the resolved product detail state.
type View struct {
	Selection       Selection       `json:"selection"`
	Variant         *models.Variant `json:"variant"`
	Gallery         []models.Image  `json:"gallery"`
	ImageIndex      int             `json:"imageIndex"`
	Price           decimal.Decimal `json:"price"`
	CompareAtPrice  decimal.Decimal `json:"compareAtPrice"`
	DiscountPercent int             `json:"discountPercent"`
	InStock         bool            `json:"inStock"`
}

// Resolve computes the view for sel. ImageIndex is always reset to the first image.
func Resolve(p *models.Product, sel Selection) View {
	view := View{
		Selection: sel,
		Gallery:   Gallery(p, sel),
		Price:     decimal.Zero,
	}
	v := ActiveVariant(p, sel)
	if v == nil {
		return view
	}
	variant := *v
	view.Variant = &variant
	view.Price = v.Price
	view.CompareAtPrice = v.CompareAtPrice
	view.DiscountPercent = pricing.DiscountPercent(v.Price, v.CompareAtPrice)
	view.InStock = v.InventoryQty > 0
	return view
}
