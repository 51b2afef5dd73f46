package models

import (
	"slices"
	"time"
)

// Currency is the currency prices are shown in
type Currency string

const (
	CurrencyDollar Currency = "dollar"
	CurrencyEuro   Currency = "euro"
)

// Valid reports whether c is a known currency
func (c Currency) Valid() bool {
	return c == CurrencyDollar || c == CurrencyEuro
}

// Symbol returns the printed currency sign
func (c Currency) Symbol() string {
	if c == CurrencyEuro {
		return "€"
	}
	return "$"
}

// Template selects the sheet layout
type Template string

const (
	TemplateCard Template = "card"
	TemplateList Template = "list"
)

// Valid reports whether t is a known template
func (t Template) Valid() bool {
	return t == TemplateCard || t == TemplateList
}

// LinkType names one of the social links on a sheet
type LinkType string

const (
	LinkTwitter   LinkType = "twitter"
	LinkWebsite   LinkType = "website"
	LinkDiscord   LinkType = "discord"
	LinkInstagram LinkType = "instagram"
)

// Tier is one priced commission offering
type Tier struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Image string   `json:"image"`
	Info  []string `json:"info"`
	Price float64  `json:"price"`
}

// Colors is the sheet color scheme, named after palette entries ("sky", "rose", ...)
type Colors struct {
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Links holds the artist's social handles
type Links struct {
	Twitter   string `json:"twitter"`
	Website   string `json:"website"`
	Discord   string `json:"discord"`
	Instagram string `json:"instagram,omitempty"`
}

// Get returns the link for t
func (l Links) Get(t LinkType) string {
	switch t {
	case LinkTwitter:
		return l.Twitter
	case LinkWebsite:
		return l.Website
	case LinkDiscord:
		return l.Discord
	case LinkInstagram:
		return l.Instagram
	}
	return ""
}

// FontDescriptor references a web font: a family and its style-variant files
type FontDescriptor struct {
	Family   string            `json:"family"`
	Files    map[string]string `json:"files"`
	Category string            `json:"category,omitempty"`
	Variants []string          `json:"variants,omitempty"`
}

// Clone returns a deep copy of f
func (f *FontDescriptor) Clone() *FontDescriptor {
	if f == nil {
		return nil
	}
	out := &FontDescriptor{
		Family:   f.Family,
		Category: f.Category,
		Variants: slices.Clone(f.Variants),
	}
	if f.Files != nil {
		out.Files = make(map[string]string, len(f.Files))
		for k, v := range f.Files {
			out.Files[k] = v
		}
	}
	return out
}

// Document is the complete editable commission sheet
type Document struct {
	Template   Template        `json:"template"`
	ArtistName string          `json:"artistName"`
	Currency   Currency        `json:"currency"`
	Rules      []string        `json:"rules"`
	Colors     Colors          `json:"colors"`
	Tiers      []Tier          `json:"tiers"`
	Links      Links           `json:"links"`
	Font       *FontDescriptor `json:"font,omitempty"`
}

// Clone returns a deep copy so snapshots never share slices with the store
func (d Document) Clone() Document {
	out := d
	out.Rules = slices.Clone(d.Rules)
	if d.Tiers != nil {
		out.Tiers = make([]Tier, len(d.Tiers))
		for i, t := range d.Tiers {
			t.Info = slices.Clone(t.Info)
			out.Tiers[i] = t
		}
	}
	out.Font = d.Font.Clone()
	return out
}

// MaxTierID returns the largest tier id in the document, or 0
func (d Document) MaxTierID() int64 {
	var max int64
	for _, t := range d.Tiers {
		if t.ID > max {
			max = t.ID
		}
	}
	return max
}

// ExportFormat names an export artifact type
type ExportFormat string

const (
	ExportPNG  ExportFormat = "png"
	ExportXLSX ExportFormat = "xlsx"
)

// ExportEvent records one produced export artifact
type ExportEvent struct {
	ID         string       `json:"id"`
	Format     ExportFormat `json:"format"`
	Template   Template     `json:"template"`
	ArtistName string       `json:"artistName"`
	Tiers      int          `json:"tiers"`
	Bytes      int          `json:"bytes"`
	Source     string       `json:"source"`
	CreatedAt  time.Time    `json:"createdAt"`
}
