package editor

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/store"
)

var ErrEmptyRule = errors.New("rule text is empty")

// AddRule appends text to the rules
func AddRule(doc models.Document, text string) (models.Document, error) {
	if strings.TrimSpace(text) == "" {
		return doc, ErrEmptyRule
	}
	doc.Rules = slices.Concat(doc.Rules, []string{text})
	return doc, nil
}

// RemoveRule deletes the first rule equal to text. Duplicate rule texts are
// indistinguishable; only the first goes.
func RemoveRule(doc models.Document, text string) models.Document {
	if i := slices.Index(doc.Rules, text); i >= 0 {
		doc.Rules = slices.Delete(slices.Clone(doc.Rules), i, i+1)
	}
	return doc
}

// RuleEditor edits the rule list of the store's document
type RuleEditor struct {
	store *store.Store
}

func NewRuleEditor(s *store.Store) *RuleEditor {
	return &RuleEditor{store: s}
}

func (e *RuleEditor) Add(ctx context.Context, text string) (models.Document, error) {
	return e.store.Modify(ctx, func(doc models.Document) (models.Document, error) {
		return AddRule(doc, text)
	})
}

func (e *RuleEditor) Remove(ctx context.Context, text string) (models.Document, error) {
	return e.store.Modify(ctx, func(doc models.Document) (models.Document, error) {
		return RemoveRule(doc, text), nil
	})
}
