// Package transform validates raw upstream catalog records and converts them
// into catalog items, including image URL resolution.
package transform

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/greenhouse-labs/catalog-bff/internal/catalog"
)

// promotionActive is the upstream sentinel for an active flag
const promotionActive = -1

// Transformer turns raw records into catalog items
type Transformer struct {
	images ImageResolver
}

// NewTransformer creates a Transformer. A nil resolver leaves ImageURL empty.
func NewTransformer(images ImageResolver) *Transformer {
	return &Transformer{images: images}
}

// Transform parses raw and resolves its image URL. Any violation yields a
// *ValidationError and the record must be dropped.
func (t *Transformer) Transform(ctx context.Context, raw json.RawMessage) (catalog.CatalogItem, error) {
	item, violations, err := Parse(raw)
	if err != nil {
		return catalog.CatalogItem{}, err
	}
	if len(violations) > 0 {
		return catalog.CatalogItem{}, &ValidationError{ID: item.ID, Violations: violations}
	}

	if t.images != nil {
		item.ImageURL = t.images.Resolve(ctx, item.ID)
	}
	return item, nil
}

// Parse reads one upstream record. Absent and null fields take their zero
// value and unknown fields are ignored; fields of the wrong type, negative
// numbers and a blank id are reported as violations. An error is returned
// only when raw is not a JSON object.
func Parse(raw []byte) (catalog.CatalogItem, []Violation, error) {
	if !gjson.ValidBytes(raw) {
		return catalog.CatalogItem{}, nil, ErrMalformedRecord
	}
	rec := gjson.ParseBytes(raw)
	if !rec.IsObject() {
		return catalog.CatalogItem{}, nil, ErrMalformedRecord
	}

	p := &recordParser{rec: rec}

	item := catalog.CatalogItem{
		ID:             p.id(),
		AltEAN:         p.str(fieldAltEAN),
		ScientificName: TitleCase(p.str(fieldScientificName)),
		Family:         TitleCase(p.str(fieldFamily)),
		CommonName:     p.str(fieldCommonName),
		BasePrice:      p.price(fieldBasePrice),
		Price2:         p.price(fieldPrice2),
		Price3:         p.price(fieldPrice3),
		PotSize:        p.str(fieldPotSize),
		Caliber:        p.str(fieldCaliber),
		Height:         p.str(fieldHeight),
		Presentation:   p.str(fieldPresentation),
		Finish:         p.str(fieldFinish),
		SizeClass:      p.str(fieldSizeClass),
		UnitsPerCart:   p.units(fieldUnitsPerCart),
		UnitsPerPallet: p.units(fieldUnitsPerPallet),
		UnitsPerBox:    p.units(fieldUnitsPerBox),
	}

	for _, c := range catalog.PromotionChannels {
		item.PromotionFlags.Set(c, p.flag(promotionFields[c]))
	}

	return item, p.violations, nil
}

type recordParser struct {
	rec        gjson.Result
	violations []Violation
}

func (p *recordParser) violate(field, message string) {
	p.violations = append(p.violations, Violation{Field: field, Message: message})
}

// get returns the field and whether it carries a value
func (p *recordParser) get(field string) (gjson.Result, bool) {
	v := p.rec.Get(gjson.Escape(field))
	return v, v.Type != gjson.Null
}

func (p *recordParser) id() string {
	v, ok := p.get(fieldID)
	if !ok {
		p.violate(fieldID, "is required")
		return ""
	}
	if v.Type != gjson.String {
		p.violate(fieldID, "must be a string")
		return ""
	}
	id := strings.TrimSpace(v.Str)
	if id == "" {
		p.violate(fieldID, "must not be blank")
	}
	return id
}

func (p *recordParser) str(field string) string {
	v, ok := p.get(field)
	if !ok {
		return ""
	}
	if v.Type != gjson.String {
		p.violate(field, "must be a string")
		return ""
	}
	return v.Str
}

func (p *recordParser) number(field string) (float64, bool) {
	v, ok := p.get(field)
	if !ok {
		return 0, false
	}
	if v.Type != gjson.Number {
		p.violate(field, "must be a number")
		return 0, false
	}
	return v.Num, true
}

func (p *recordParser) price(field string) float64 {
	n, ok := p.number(field)
	if !ok {
		return 0
	}
	if n < 0 {
		p.violate(field, "must not be negative")
		return 0
	}
	return n
}

func (p *recordParser) units(field string) int {
	n, ok := p.number(field)
	if !ok {
		return 0
	}
	if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		p.violate(field, "must be a non-negative integer")
		return 0
	}
	return int(n)
}

// flag reads a {"value": number} sub-object; only -1 means active
func (p *recordParser) flag(field string) bool {
	v, ok := p.get(field)
	if !ok {
		return false
	}
	if !v.IsObject() {
		p.violate(field, "must be an object with a numeric value")
		return false
	}
	value := v.Get("value")
	if value.Type != gjson.Number {
		p.violate(field+".value", "must be a number")
		return false
	}
	return value.Num == promotionActive
}
