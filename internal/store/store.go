package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/Billy-Davies-2/mitzi/internal/dal"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/pubsub"
)

// EventDocumentUpdated is published after every committed mutation
const EventDocumentUpdated = "document:updated"

// CorruptSuffix is appended to the key an unreadable stored sheet is copied to
const CorruptSuffix = ".corrupt"

// Publisher receives change notifications
type Publisher interface {
	Publish(pubsub.Event)
}

// Store holds the single editable document and mirrors it to durable storage.
// All mutations funnel through Set (or Modify, which calls the same commit path).
type Store struct {
	mu        sync.RWMutex
	storage   dal.Storage
	key       string
	doc       models.Document
	defaults  models.Document
	ids       *IDGenerator
	publisher Publisher
}

// Option configures a Store
type Option func(*Store)

// WithPublisher publishes a change event after each mutation
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		s.publisher = p
	}
}

// WithIDGenerator shares a tier id generator with the store
func WithIDGenerator(g *IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// New creates a store over storage. Call Initialize before use.
func New(storage dal.Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = NewIDGenerator()
	}
	return s
}

// IDs returns the generator backing tier ids
func (s *Store) IDs() *IDGenerator {
	return s.ids
}

// Key returns the storage key the document lives under
func (s *Store) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Initialize loads the document stored under key, or seeds and persists def when
// nothing is stored. Fields missing from an older stored blob take def's values.
// A *PersistenceError is returned alongside a usable document when storage fails.
func (s *Store) Initialize(ctx context.Context, key string, def models.Document) (models.Document, error) {
	s.mu.Lock()

	s.key = key
	s.defaults = def.Clone()

	var degraded error
	raw, err := s.storage.Load(ctx, key)
	switch {
	case errors.Is(err, dal.ErrNotFound):
		logger.Info("No saved sheet found, seeding default", "key", key)
		degraded = s.seedLocked(ctx)
	case err != nil:
		logger.Warn("Failed to load saved sheet, using default in memory", "key", key, "error", err)
		s.doc = s.defaults.Clone()
		degraded = &PersistenceError{Op: "load", Key: key, Err: err}
	default:
		doc, decodeErr := decodeDocument(raw, s.defaults)
		if decodeErr != nil {
			logger.Warn("Saved sheet is unreadable, reseeding default", "key", key, "error", decodeErr)
			degraded = s.reseedCorruptLocked(ctx, raw)
		} else {
			s.doc = s.repairTiers(doc)
			logger.Info("Loaded saved sheet", "key", key, "tiers", len(doc.Tiers), "rules", len(doc.Rules))
		}
	}

	s.ids.Advance(s.doc.MaxTierID())
	out := s.doc.Clone()
	s.mu.Unlock()

	return out, degraded
}

func (s *Store) seedLocked(ctx context.Context) error {
	s.doc = s.defaults.Clone()
	return s.persistLocked(ctx)
}

// reseedCorruptLocked copies an unreadable blob to <key>.corrupt before the default
// replaces it. If the copy fails the blob is left alone and the default only lives in memory.
func (s *Store) reseedCorruptLocked(ctx context.Context, raw string) error {
	backup := s.key + CorruptSuffix
	if err := s.storage.Save(ctx, backup, raw); err != nil {
		logger.Warn("Failed to back up unreadable sheet, not overwriting it", "key", s.key, "error", err)
		s.doc = s.defaults.Clone()
		return &PersistenceError{Op: "load", Key: s.key, Err: err}
	}
	logger.Warn("Backed up unreadable sheet", "key", s.key, "backup", backup)
	return s.seedLocked(ctx)
}

// decodeDocument overlays the stored JSON onto the defaults field by field. The rule
// and tier lists are taken whole from the blob, or whole from the defaults when absent.
func decodeDocument(raw string, def models.Document) (models.Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return models.Document{}, err
	}

	doc := def.Clone()
	doc.Rules = nil
	doc.Tiers = nil
	doc.Font = nil
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.Document{}, err
	}

	if !present(fields, "rules") {
		doc.Rules = slices.Clone(def.Rules)
	}
	if !present(fields, "tiers") {
		doc.Tiers = def.Clone().Tiers
	}
	if !present(fields, "font") {
		doc.Font = def.Font.Clone()
	}
	if doc.Rules == nil {
		doc.Rules = []string{}
	}
	if doc.Tiers == nil {
		doc.Tiers = []models.Tier{}
	}
	if !doc.Template.Valid() {
		doc.Template = def.Template
	}
	if !doc.Currency.Valid() {
		doc.Currency = def.Currency
	}
	return doc, nil
}

func present(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	return ok && string(v) != "null"
}

// repairTiers gives stored tiers that lack a usable id a fresh one and zeroes
// prices that are negative or not finite.
func (s *Store) repairTiers(doc models.Document) models.Document {
	s.ids.Advance(doc.MaxTierID())

	seen := make(map[int64]bool, len(doc.Tiers))
	for i := range doc.Tiers {
		t := &doc.Tiers[i]
		if t.ID <= 0 || seen[t.ID] {
			old := t.ID
			t.ID = s.ids.Next()
			logger.Warn("Stored tier had no usable id, assigned a new one", "tier", t.Name, "old_id", old, "id", t.ID)
		}
		seen[t.ID] = true
		if t.Price < 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
			logger.Warn("Stored tier had an invalid price, reset to 0", "tier", t.ID)
			t.Price = 0
		}
		if t.Info == nil {
			t.Info = []string{}
		}
	}
	return doc
}

// Get returns a snapshot of the current document
func (s *Store) Get() models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Set replaces the document and persists it before returning. An invalid document is
// rejected and leaves the store unchanged. A storage failure still updates the
// in-memory document and is reported as a *PersistenceError.
func (s *Store) Set(ctx context.Context, next models.Document) error {
	if err := Validate(next); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.commitLocked(ctx, next)
	s.mu.Unlock()

	s.notify(err)
	return err
}

// Modify runs fn on a snapshot and commits its result, holding the store lock across
// the read and the write so concurrent editors never lose updates.
func (s *Store) Modify(ctx context.Context, fn func(models.Document) (models.Document, error)) (models.Document, error) {
	s.mu.Lock()

	next, err := fn(s.doc.Clone())
	if err == nil {
		err = Validate(next)
	}
	if err != nil {
		s.mu.Unlock()
		return s.Get(), err
	}

	commitErr := s.commitLocked(ctx, next)
	out := s.doc.Clone()
	s.mu.Unlock()

	s.notify(commitErr)
	return out, commitErr
}

// Apply commits a batch of typed field changes atomically
func (s *Store) Apply(ctx context.Context, changes ...Change) (models.Document, error) {
	return s.Modify(ctx, func(doc models.Document) (models.Document, error) {
		for _, c := range changes {
			if err := c.apply(&doc); err != nil {
				return doc, err
			}
		}
		return doc, nil
	})
}

// Reset restores the document the store was initialized with
func (s *Store) Reset(ctx context.Context) (models.Document, error) {
	s.mu.Lock()
	err := s.commitLocked(ctx, s.defaults)
	out := s.doc.Clone()
	s.mu.Unlock()

	s.notify(err)
	return out, err
}

// DiscardBackup deletes the copy of an unreadable sheet kept under <key>.corrupt
func (s *Store) DiscardBackup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.storage.Delete(ctx, s.key+CorruptSuffix)
	if err != nil && !errors.Is(err, dal.ErrNotFound) {
		return err
	}
	return nil
}

// Ping checks the durable medium
func (s *Store) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

// Close releases the durable medium
func (s *Store) Close() error {
	return s.storage.Close()
}

func (s *Store) commitLocked(ctx context.Context, next models.Document) error {
	s.doc = next.Clone()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.doc)
	if err != nil {
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	if err := s.storage.Save(ctx, s.key, string(data)); err != nil {
		logger.Warn("Failed to persist sheet, keeping in-memory value", "key", s.key, "error", err)
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	return nil
}

func (s *Store) notify(commitErr error) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(pubsub.Event{
		Type: EventDocumentUpdated,
		Payload: map[string]interface{}{
			"key":      s.Key(),
			"degraded": commitErr != nil,
		},
	})
}
