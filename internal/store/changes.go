package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/Billy-Davies-2/mitzi/internal/models"
)

// Change is a typed, per-field edit of the document
type Change interface {
	apply(doc *models.Document) error
}

// SetTemplate switches the layout
type SetTemplate struct{ Template models.Template }

// SetArtistName sets the name shown in the sheet header
type SetArtistName struct{ Name string }

// SetCurrency sets the currency prices are shown in
type SetCurrency struct{ Currency models.Currency }

// SetColors replaces the color scheme
type SetColors struct{ Colors models.Colors }

// SetLink sets one social link; an empty value clears it
type SetLink struct {
	Type  models.LinkType
	Value string
}

// SetFont selects the sheet font
type SetFont struct{ Font models.FontDescriptor }

// ClearFont drops the font selection
type ClearFont struct{}

func (c SetTemplate) apply(doc *models.Document) error {
	if !c.Template.Valid() {
		return fmt.Errorf("%w: unknown template %q", ErrInvalidDocument, c.Template)
	}
	doc.Template = c.Template
	return nil
}

func (c SetArtistName) apply(doc *models.Document) error {
	doc.ArtistName = c.Name
	return nil
}

func (c SetCurrency) apply(doc *models.Document) error {
	if !c.Currency.Valid() {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidDocument, c.Currency)
	}
	doc.Currency = c.Currency
	return nil
}

func (c SetColors) apply(doc *models.Document) error {
	doc.Colors = c.Colors
	return nil
}

func (c SetLink) apply(doc *models.Document) error {
	switch c.Type {
	case models.LinkTwitter:
		doc.Links.Twitter = c.Value
	case models.LinkWebsite:
		doc.Links.Website = c.Value
	case models.LinkDiscord:
		doc.Links.Discord = c.Value
	case models.LinkInstagram:
		doc.Links.Instagram = c.Value
	default:
		return fmt.Errorf("%w: unknown link type %q", ErrInvalidDocument, c.Type)
	}
	return nil
}

func (c SetFont) apply(doc *models.Document) error {
	if strings.TrimSpace(c.Font.Family) == "" {
		return fmt.Errorf("%w: font family is required", ErrInvalidDocument)
	}
	doc.Font = c.Font.Clone()
	return nil
}

func (c ClearFont) apply(doc *models.Document) error {
	doc.Font = nil
	return nil
}

// ParseChange decodes a wire-level {field, value} pair into a Change.
// Link fields are addressed as "links.<type>".
func ParseChange(field string, value json.RawMessage) (Change, error) {
	decode := func(v any) error {
		if err := json.Unmarshal(value, v); err != nil {
			return fmt.Errorf("%w: bad value for %s: %v", ErrInvalidDocument, field, err)
		}
		return nil
	}

	switch {
	case field == "template":
		var t models.Template
		if err := decode(&t); err != nil {
			return nil, err
		}
		return SetTemplate{Template: t}, nil
	case field == "artistName":
		var s string
		if err := decode(&s); err != nil {
			return nil, err
		}
		return SetArtistName{Name: s}, nil
	case field == "currency":
		var c models.Currency
		if err := decode(&c); err != nil {
			return nil, err
		}
		return SetCurrency{Currency: c}, nil
	case field == "colors":
		var c models.Colors
		if err := decode(&c); err != nil {
			return nil, err
		}
		return SetColors{Colors: c}, nil
	case strings.HasPrefix(field, "links."):
		var s string
		if err := decode(&s); err != nil {
			return nil, err
		}
		return SetLink{Type: models.LinkType(strings.TrimPrefix(field, "links.")), Value: s}, nil
	case field == "font":
		if len(value) == 0 || string(value) == "null" {
			return ClearFont{}, nil
		}
		var f models.FontDescriptor
		if err := decode(&f); err != nil {
			return nil, err
		}
		return SetFont{Font: f}, nil
	}
	return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidDocument, field)
}

// Validate checks the data model invariants of a whole document
func Validate(doc models.Document) error {
	if !doc.Template.Valid() {
		return fmt.Errorf("%w: unknown template %q", ErrInvalidDocument, doc.Template)
	}
	if !doc.Currency.Valid() {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidDocument, doc.Currency)
	}
	seen := make(map[int64]bool, len(doc.Tiers))
	for _, t := range doc.Tiers {
		if t.ID <= 0 {
			return fmt.Errorf("%w: tier %q has no id", ErrInvalidDocument, t.Name)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate tier id %d", ErrInvalidDocument, t.ID)
		}
		seen[t.ID] = true
		if t.Price < 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
			return fmt.Errorf("%w: tier %d has invalid price %v", ErrInvalidDocument, t.ID, t.Price)
		}
	}
	return nil
}
