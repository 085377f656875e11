package service

import (
	"fmt"
	"regexp"
	"strings"

	"partyshop/internal/apperr"
	"partyshop/internal/models"
	"partyshop/internal/pricing"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a title into a handle: lowercase ASCII words joined by hyphens.
func slugify(title string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// stampOptions sets option1/option2 from each variant's color and size.
func stampOptions(p *models.Product) {
	for i := range p.Variants {
		p.Variants[i].Option1 = p.Variants[i].Color
		p.Variants[i].Option2 = p.Variants[i].Size
	}
}

// validateProduct checks the document invariants that must hold after every write.
func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Title) == "" {
		return apperr.Validation("title is required")
	}

	colors := make(map[string]models.Color, len(p.Colors))
	for _, c := range p.Colors {
		if strings.TrimSpace(c.Name) == "" {
			return apperr.Validation("color name required")
		}
		if _, dup := colors[c.Name]; dup {
			return apperr.Validation(fmt.Sprintf("duplicate color name: %s", c.Name))
		}
		sizes := make(map[string]struct{}, len(c.Sizes))
		for _, s := range c.Sizes {
			if strings.TrimSpace(s) == "" {
				return apperr.Validation(fmt.Sprintf("empty size in color %s", c.Name))
			}
			if _, dup := sizes[s]; dup {
				return apperr.Validation(fmt.Sprintf("duplicate size %s in color %s", s, c.Name))
			}
			sizes[s] = struct{}{}
		}
		colors[c.Name] = c
	}

	offered := func(key models.VariantKey) bool {
		c, ok := colors[key.Color]
		return ok && c.HasSize(key.Size)
	}

	seen := make(map[models.VariantKey]struct{}, len(p.Variants))
	for _, v := range p.Variants {
		key := v.Key()
		if _, dup := seen[key]; dup {
			return apperr.Validation(fmt.Sprintf("duplicate variant: %s", key))
		}
		seen[key] = struct{}{}
		if !offered(key) {
			return apperr.Validation(fmt.Sprintf("variant %s does not match any color size", key))
		}
		if v.Price.IsNegative() || v.CompareAtPrice.IsNegative() {
			return apperr.Validation(fmt.Sprintf("variant %s has a negative price", key))
		}
		if !pricing.IsCents(v.Price) || !pricing.IsCents(v.CompareAtPrice) {
			return apperr.Validation(fmt.Sprintf("variant %s price has more than %d decimal places", key, pricing.Places))
		}
		if v.InventoryQty < 0 {
			return apperr.Validation(fmt.Sprintf("variant %s has negative inventory", key))
		}
	}

	for _, g := range p.VariantImages {
		if !offered(g.Key()) {
			return apperr.Validation(fmt.Sprintf("variant images %s do not match any color size", g.Key()))
		}
	}
	for _, g := range p.ColorImages {
		if _, ok := colors[g.Color]; !ok {
			return apperr.Validation(fmt.Sprintf("color images reference unknown color %s", g.Color))
		}
	}
	return nil
}
