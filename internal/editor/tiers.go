package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/store"
)

var (
	ErrDuplicateTier = errors.New("duplicate tier id")
	ErrInvalidTier   = errors.New("invalid tier")
	ErrTierNotFound  = errors.New("tier not found")
)

// AddTier appends tier to the document. The id must already be assigned.
func AddTier(doc models.Document, tier models.Tier) (models.Document, error) {
	if err := checkTier(tier); err != nil {
		return doc, err
	}
	if indexOfTier(doc.Tiers, tier.ID) >= 0 {
		return doc, fmt.Errorf("%w: %d", ErrDuplicateTier, tier.ID)
	}
	doc.Tiers = slices.Concat(doc.Tiers, []models.Tier{normalizeTier(tier)})
	return doc, nil
}

// UpdateTier replaces the tier with the same id in place
func UpdateTier(doc models.Document, tier models.Tier) (models.Document, error) {
	if err := checkTier(tier); err != nil {
		return doc, err
	}
	i := indexOfTier(doc.Tiers, tier.ID)
	if i < 0 {
		return doc, fmt.Errorf("%w: %d", ErrTierNotFound, tier.ID)
	}
	doc.Tiers = slices.Clone(doc.Tiers)
	doc.Tiers[i] = normalizeTier(tier)
	return doc, nil
}

// RemoveTier deletes the tier with id. A missing id leaves the document unchanged.
func RemoveTier(doc models.Document, id int64) models.Document {
	i := indexOfTier(doc.Tiers, id)
	if i < 0 {
		return doc
	}
	doc.Tiers = slices.Delete(slices.Clone(doc.Tiers), i, i+1)
	return doc
}

// MoveTier moves the tier with id to index, clamped to the sequence bounds
func MoveTier(doc models.Document, id int64, index int) (models.Document, error) {
	from := indexOfTier(doc.Tiers, id)
	if from < 0 {
		return doc, fmt.Errorf("%w: %d", ErrTierNotFound, id)
	}
	index = max(0, min(index, len(doc.Tiers)-1))
	if index == from {
		return doc, nil
	}

	tier := doc.Tiers[from]
	tiers := slices.Delete(slices.Clone(doc.Tiers), from, from+1)
	doc.Tiers = slices.Insert(tiers, index, tier)
	return doc, nil
}

func checkTier(tier models.Tier) error {
	if tier.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidTier)
	}
	if tier.Price < 0 || math.IsNaN(tier.Price) || math.IsInf(tier.Price, 0) {
		return fmt.Errorf("%w: price %v", ErrInvalidTier, tier.Price)
	}
	return nil
}

func normalizeTier(tier models.Tier) models.Tier {
	if tier.Info == nil {
		tier.Info = []string{}
	}
	return tier
}

func indexOfTier(tiers []models.Tier, id int64) int {
	for i, t := range tiers {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// TierEditor edits the tier list of the store's document. Every call is one atomic
// store mutation; a degraded save is returned alongside the updated document.
type TierEditor struct {
	store *store.Store
}

func NewTierEditor(s *store.Store) *TierEditor {
	return &TierEditor{store: s}
}

// Add appends tier, drawing an id from the store's generator when tier.ID is zero.
// It returns the tier as stored.
func (e *TierEditor) Add(ctx context.Context, tier models.Tier) (models.Tier, models.Document, error) {
	if tier.ID == 0 {
		tier.ID = e.store.IDs().Next()
	}
	doc, err := e.store.Modify(ctx, func(doc models.Document) (models.Document, error) {
		return AddTier(doc, tier)
	})
	return normalizeTier(tier), doc, err
}

func (e *TierEditor) Update(ctx context.Context, tier models.Tier) (models.Document, error) {
	return e.store.Modify(ctx, func(doc models.Document) (models.Document, error) {
		return UpdateTier(doc, tier)
	})
}

func (e *TierEditor) Remove(ctx context.Context, id int64) (models.Document, error) {
	return e.store.Modify(ctx, func(doc models.Document) (models.Document, error) {
		return RemoveTier(doc, id), nil
	})
}

func (e *TierEditor) Move(ctx context.Context, id int64, index int) (models.Document, error) {
	return e.store.Modify(ctx, func(doc models.Document) (models.Document, error) {
		return MoveTier(doc, id, index)
	})
}
