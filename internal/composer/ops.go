package composer

import (
	"fmt"

	"partyshop/internal/apperr"
	"partyshop/internal/models"
)

// Operation names accepted by Apply.
const (
	OpAddColor       = "addColor"
	OpSetColorName   = "setColorName"
	OpSetColorHex    = "setColorHex"
	OpAddSize        = "addSize"
	OpRemoveSize     = "removeSize"
	OpRemoveColor    = "removeColor"
	OpSetImages      = "setVariantImages"
	OpCommitVariants = "commitVariants"
	OpUpdateVariant  = "updateVariant"
)

// Op is one serialized reducer call, as sent by the admin product form.
type Op struct {
	Type    string         `json:"type" binding:"required"`
	ColorID string         `json:"colorId,omitempty"`
	Color   string         `json:"color,omitempty"`
	Name    string         `json:"name,omitempty"`
	Hex     string         `json:"hex,omitempty"`
	Size    string         `json:"size,omitempty"`
	Field   string         `json:"field,omitempty"`
	Value   string         `json:"value,omitempty"`
	Images  []models.Image `json:"images,omitempty"`
}

// Apply runs ops in order and stops at the first failing one.
// OpAddColor without a ColorID gets a generated id; later ops may refer to it by "$last".
func Apply(d Draft, ops ...Op) (Draft, error) {
	var last string
	for i, op := range ops {
		colorID := op.ColorID
		if colorID == "$last" {
			colorID = last
		}

		var err error
		switch op.Type {
		case OpAddColor:
			d, last = AddColor(d)
			if op.Name != "" {
				d, err = SetColorName(d, last, op.Name)
			}
			if err == nil && op.Hex != "" {
				d, err = SetColorHex(d, last, op.Hex)
			}
		case OpSetColorName:
			d, err = SetColorName(d, colorID, op.Name)
		case OpSetColorHex:
			d, err = SetColorHex(d, colorID, op.Hex)
		case OpAddSize:
			d, err = AddSize(d, colorID, op.Size)
		case OpRemoveSize:
			d, err = RemoveSize(d, colorID, op.Size)
		case OpRemoveColor:
			d, err = RemoveColor(d, colorID)
		case OpSetImages:
			d, err = SetVariantImages(d, op.Color, op.Size, op.Images)
		case OpCommitVariants:
			d, err = CommitVariantsForColor(d, colorID)
		case OpUpdateVariant:
			d, err = UpdateVariantField(d, op.Color, op.Size, op.Field, op.Value)
		default:
			err = apperr.Validation("unknown operation: " + op.Type)
		}
		if err != nil {
			return d, fmt.Errorf("op %d (%s): %w", i, op.Type, err)
		}
	}
	return d, nil
}
