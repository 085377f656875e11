// Package composer builds the color × size variant matrix of a product before it is saved.
//
// Every function takes a Draft by value and returns a new Draft; the input is never mutated.
package composer

import (
	"strconv"
	"strings"

	"partyshop/internal/apperr"
	"partyshop/internal/models"
	"partyshop/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Variant fields accepted by UpdateVariantField.
const (
	FieldPrice          = "price"
	FieldCompareAtPrice = "compareAtPrice"
	FieldInventoryQty   = "inventoryQty"
	FieldSKU            = "sku"
)

// Draft is the in-progress variant configuration of a product.
type Draft struct {
	Colors        []models.Color         `json:"colors"`
	Variants      []models.Variant       `json:"variants"`
	VariantImages []models.VariantImages `json:"variantImages"`
}

func (d Draft) clone() Draft {
	out := Draft{
		Colors:        make([]models.Color, len(d.Colors)),
		Variants:      make([]models.Variant, len(d.Variants)),
		VariantImages: make([]models.VariantImages, len(d.VariantImages)),
	}
	copy(out.Variants, d.Variants)
	for i, c := range d.Colors {
		c.Sizes = append([]string(nil), c.Sizes...)
		out.Colors[i] = c
	}
	for i, g := range d.VariantImages {
		g.Images = append([]models.Image(nil), g.Images...)
		out.VariantImages[i] = g
	}
	return out
}

func (d Draft) colorIndex(colorID string) (int, error) {
	for i, c := range d.Colors {
		if c.ID == colorID {
			return i, nil
		}
	}
	return -1, apperr.NotFound("color not found: %s", colorID)
}

func (d Draft) colorByName(name string) (models.Color, bool) {
	for _, c := range d.Colors {
		if c.Name == name {
			return c, true
		}
	}
	return models.Color{}, false
}

func (d Draft) imagesFor(key models.VariantKey) []models.Image {
	for _, g := range d.VariantImages {
		if g.Key() == key {
			return g.Images
		}
	}
	return nil
}

// NormalizeSize trims and upper-cases a size label.
func NormalizeSize(size string) string {
	return strings.ToUpper(strings.TrimSpace(size))
}

// AddColor appends an unnamed color with no sizes and returns its id.
func AddColor(d Draft) (Draft, string) {
	out := d.clone()
	id := uuid.NewString()
	out.Colors = append(out.Colors, models.Color{ID: id, Sizes: []string{}})
	return out, id
}

// SetColorName names a color. Existing variants and variant images follow the rename.
func SetColorName(d Draft, colorID, name string) (Draft, error) {
	idx, err := d.colorIndex(colorID)
	if err != nil {
		return d, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return d, apperr.Validation("color name required")
	}
	for _, c := range d.Colors {
		if c.ID != colorID && c.Name == name {
			return d, apperr.Validation("duplicate color name")
		}
	}

	out := d.clone()
	old := out.Colors[idx].Name
	out.Colors[idx].Name = name
	if old == "" || old == name {
		return out, nil
	}
	for i := range out.Variants {
		if out.Variants[i].Color == old {
			out.Variants[i].Color = name
		}
	}
	for i := range out.VariantImages {
		if out.VariantImages[i].Color == old {
			out.VariantImages[i].Color = name
		}
	}
	return out, nil
}

// SetColorHex sets the swatch color.
func SetColorHex(d Draft, colorID, hex string) (Draft, error) {
	idx, err := d.colorIndex(colorID)
	if err != nil {
		return d, err
	}
	out := d.clone()
	out.Colors[idx].Hex = strings.TrimSpace(hex)
	return out, nil
}

// AddSize adds a size to a named color. Adding a size the color already has is a no-op.
func AddSize(d Draft, colorID, size string) (Draft, error) {
	idx, err := d.colorIndex(colorID)
	if err != nil {
		return d, err
	}
	if d.Colors[idx].Name == "" {
		return d, apperr.Validation("color name required")
	}
	size = NormalizeSize(size)
	if size == "" {
		return d, apperr.Validation("size required")
	}
	if d.Colors[idx].HasSize(size) {
		return d, nil
	}

	out := d.clone()
	out.Colors[idx].Sizes = append(out.Colors[idx].Sizes, size)
	return out, nil
}

// RemoveSize removes a size together with its variant and variant images.
func RemoveSize(d Draft, colorID, size string) (Draft, error) {
	idx, err := d.colorIndex(colorID)
	if err != nil {
		return d, err
	}
	size = NormalizeSize(size)
	key := models.VariantKey{Color: d.Colors[idx].Name, Size: size}

	out := d.clone()
	sizes := out.Colors[idx].Sizes[:0]
	for _, s := range out.Colors[idx].Sizes {
		if s != size {
			sizes = append(sizes, s)
		}
	}
	out.Colors[idx].Sizes = sizes
	out.Variants = filterVariants(out.Variants, func(v models.Variant) bool { return v.Key() != key })
	out.VariantImages = filterImages(out.VariantImages, func(g models.VariantImages) bool { return g.Key() != key })
	return out, nil
}

// RemoveColor removes a color with every variant and variant image of that color.
func RemoveColor(d Draft, colorID string) (Draft, error) {
	idx, err := d.colorIndex(colorID)
	if err != nil {
		return d, err
	}
	name := d.Colors[idx].Name

	out := d.clone()
	out.Colors = append(out.Colors[:idx], out.Colors[idx+1:]...)
	if name == "" {
		return out, nil
	}
	out.Variants = filterVariants(out.Variants, func(v models.Variant) bool { return v.Color != name })
	out.VariantImages = filterImages(out.VariantImages, func(g models.VariantImages) bool { return g.Color != name })
	return out, nil
}

// SetVariantImages replaces the images of one color/size pair. Empty images clear the entry.
func SetVariantImages(d Draft, color, size string, images []models.Image) (Draft, error) {
	size = NormalizeSize(size)
	c, ok := d.colorByName(color)
	if !ok || !c.HasSize(size) {
		return d, apperr.NotFound("variant not found: %s", models.VariantKey{Color: color, Size: size})
	}
	key := models.VariantKey{Color: color, Size: size}

	out := d.clone()
	out.VariantImages = filterImages(out.VariantImages, func(g models.VariantImages) bool { return g.Key() != key })
	if len(images) > 0 {
		out.VariantImages = append(out.VariantImages, models.VariantImages{
			Color:  color,
			Size:   size,
			Images: append([]models.Image(nil), images...),
		})
	}
	return out, nil
}

// ReadyToCommit reports whether a named color has sizes and every size has at least one image.
func ReadyToCommit(d Draft, colorID string) bool {
	idx, err := d.colorIndex(colorID)
	if err != nil {
		return false
	}
	c := d.Colors[idx]
	if c.Name == "" || len(c.Sizes) == 0 {
		return false
	}
	for _, s := range c.Sizes {
		if len(d.imagesFor(models.VariantKey{Color: c.Name, Size: s})) == 0 {
			return false
		}
	}
	return true
}

// CommitVariantsForColor creates a zero-priced variant for every size of the color that has none yet.
func CommitVariantsForColor(d Draft, colorID string) (Draft, error) {
	idx, err := d.colorIndex(colorID)
	if err != nil {
		return d, err
	}
	c := d.Colors[idx]
	if c.Name == "" {
		return d, apperr.Validation("color name required")
	}

	seen := make(map[models.VariantKey]struct{}, len(d.Variants))
	for _, v := range d.Variants {
		seen[v.Key()] = struct{}{}
	}

	out := d.clone()
	for _, s := range c.Sizes {
		key := models.VariantKey{Color: c.Name, Size: s}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Variants = append(out.Variants, models.Variant{
			Color:          c.Name,
			Size:           s,
			Price:          decimal.Zero,
			CompareAtPrice: decimal.Zero,
		})
	}
	return out, nil
}

// UpdateVariantField sets one field of a variant from form input.
// Malformed numbers are stored as zero rather than rejected.
func UpdateVariantField(d Draft, color, size, field, value string) (Draft, error) {
	key := models.VariantKey{Color: color, Size: NormalizeSize(size)}
	idx := -1
	for i, v := range d.Variants {
		if v.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return d, apperr.NotFound("variant not found: %s", key)
	}

	out := d.clone()
	v := &out.Variants[idx]
	switch field {
	case FieldPrice:
		v.Price = parseMoney(value)
	case FieldCompareAtPrice:
		v.CompareAtPrice = parseMoney(value)
	case FieldInventoryQty:
		v.InventoryQty = parseQty(value)
	case FieldSKU:
		v.SKU = value
	default:
		return d, apperr.Validation("unknown variant field: " + field)
	}
	return out, nil
}

// Product folds the draft into a catalog document, stamping option1/option2.
func (d Draft) Product(base models.Product) models.Product {
	c := d.clone()
	base.Colors = c.Colors
	base.Variants = c.Variants
	base.VariantImages = c.VariantImages
	for i := range base.Variants {
		base.Variants[i].Option1 = base.Variants[i].Color
		base.Variants[i].Option2 = base.Variants[i].Size
	}
	return base
}

// FromProduct starts a draft from an existing document.
func FromProduct(p models.Product) Draft {
	return Draft{Colors: p.Colors, Variants: p.Variants, VariantImages: p.VariantImages}.clone()
}

func parseMoney(value string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero
	}
	return d.Round(pricing.Places)
}

func parseQty(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

func filterVariants(in []models.Variant, keep func(models.Variant) bool) []models.Variant {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func filterImages(in []models.VariantImages, keep func(models.VariantImages) bool) []models.VariantImages {
	out := in[:0]
	for _, g := range in {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}
