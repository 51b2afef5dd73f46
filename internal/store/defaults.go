package store

import "github.com/Billy-Davies-2/mitzi/internal/models"

// DefaultKey is the storage key the sheet lives under
const DefaultKey = "savedCommissionData"

const placeholderImage = "/images/placeholder.jpg"

// DefaultDocument builds the starter sheet, drawing tier ids from ids
func DefaultDocument(ids *IDGenerator) models.Document {
	return models.Document{
		Template:   models.TemplateCard,
		ArtistName: "",
		Currency:   models.CurrencyDollar,
		Rules:      []string{"Don't be a jerk", "Nothing illegal"},
		Colors: models.Colors{
			Background: "sky",
			Text:       "sky",
		},
		Tiers: []models.Tier{
			{
				ID:    ids.Next(),
				Name:  "Basic",
				Image: placeholderImage,
				Info:  []string{"One character", "Simple background"},
				Price: 45,
			},
			{
				ID:    ids.Next(),
				Name:  "Advanced",
				Image: placeholderImage,
				Info:  []string{"One character", "More elaborate background"},
				Price: 55,
			},
			{
				ID:    ids.Next(),
				Name:  "Premium",
				Image: placeholderImage,
				Info:  []string{"Two characters", "Custom background scene"},
				Price: 65,
			},
		},
		Links: models.Links{},
	}
}
