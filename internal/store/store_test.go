package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/Billy-Davies-2/mitzi/internal/dal"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/pubsub"
)

// flakyStorage fails saves or loads on demand
type flakyStorage struct {
	*dal.MemoryStorage
	mu       sync.Mutex
	failSave bool
	failLoad bool
	saves    int
}

func newFlakyStorage() *flakyStorage {
	return &flakyStorage{MemoryStorage: dal.NewMemoryStorage()}
}

func (f *flakyStorage) setFailSave(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = v
}

func (f *flakyStorage) Save(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSave
	f.saves++
	f.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return f.MemoryStorage.Save(ctx, key, value)
}

func (f *flakyStorage) Load(ctx context.Context, key string) (string, error) {
	if f.failLoad {
		return "", errors.New("storage offline")
	}
	return f.MemoryStorage.Load(ctx, key)
}

func newTestStore(t *testing.T, storage dal.Storage, opts ...Option) *Store {
	t.Helper()
	s := New(storage, opts...)
	if _, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs())); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return s
}

func TestInitializeSeedsAndPersistsDefault(t *testing.T) {
	storage := dal.NewMemoryStorage()
	s := New(storage)

	doc, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs()))
	if err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if len(doc.Tiers) != 3 || len(doc.Rules) != 2 {
		t.Fatalf("expected default sheet with 3 tiers and 2 rules, got %d/%d", len(doc.Tiers), len(doc.Rules))
	}

	raw, err := storage.Load(context.Background(), DefaultKey)
	if err != nil {
		t.Fatalf("default document was not persisted: %v", err)
	}
	var stored models.Document
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored blob is not JSON: %v", err)
	}
	if !reflect.DeepEqual(stored, doc) {
		t.Errorf("stored document differs from returned one:\n%+v\n%+v", stored, doc)
	}
}

func TestInitializeLoadsExistingAndFillsMissingFields(t *testing.T) {
	storage := dal.NewMemoryStorage()
	// An older blob without currency, colors or links
	blob := `{"template":"card","artistName":"Mitzi","rules":["No NSFW"],"tiers":[{"id":7,"name":"Sketch","image":"","info":[],"price":10}]}`
	if err := storage.Save(context.Background(), DefaultKey, blob); err != nil {
		t.Fatal(err)
	}

	s := New(storage)
	doc, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs()))
	if err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if doc.ArtistName != "Mitzi" {
		t.Errorf("ArtistName = %q, want Mitzi", doc.ArtistName)
	}
	if doc.Currency != models.CurrencyDollar {
		t.Errorf("missing currency should default to dollar, got %q", doc.Currency)
	}
	if doc.Colors.Background != "sky" {
		t.Errorf("missing colors should default, got %+v", doc.Colors)
	}
	if len(doc.Tiers) != 1 || doc.Tiers[0].Name != "Sketch" {
		t.Errorf("stored tiers should replace defaults, got %+v", doc.Tiers)
	}

	if id := s.IDs().Next(); id <= 7 {
		t.Errorf("generator should be advanced past loaded ids, got %d", id)
	}
}

func TestInitializeReseedsCorruptBlob(t *testing.T) {
	storage := dal.NewMemoryStorage()
	storage.Save(context.Background(), DefaultKey, "{not json")

	s := New(storage)
	doc, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs()))
	if err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if len(doc.Tiers) != 3 {
		t.Errorf("expected default tiers after corrupt blob, got %d", len(doc.Tiers))
	}

	raw, _ := storage.Load(context.Background(), DefaultKey)
	if !json.Valid([]byte(raw)) {
		t.Error("corrupt blob should have been overwritten with the default")
	}
	backup, err := storage.Load(context.Background(), DefaultKey+CorruptSuffix)
	if err != nil || backup != "{not json" {
		t.Errorf("corrupt blob should be kept under %q, got %q (%v)", DefaultKey+CorruptSuffix, backup, err)
	}
}

func TestDiscardBackup(t *testing.T) {
	storage := dal.NewMemoryStorage()
	storage.Save(context.Background(), DefaultKey, "{not json")
	s := New(storage)
	if _, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs())); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if err := s.DiscardBackup(context.Background()); err != nil {
		t.Fatalf("DiscardBackup() failed: %v", err)
	}
	if _, err := storage.Load(context.Background(), DefaultKey+CorruptSuffix); !errors.Is(err, dal.ErrNotFound) {
		t.Errorf("backup should be gone, got %v", err)
	}
	if err := s.DiscardBackup(context.Background()); err != nil {
		t.Errorf("discarding twice should be a no-op, got %v", err)
	}
}

func TestInitializeDoesNotMergeStoredTiersWithDefaults(t *testing.T) {
	storage := dal.NewMemoryStorage()
	storage.Save(context.Background(), DefaultKey, `{"tiers":[{"id":7,"name":"Sketch","price":10}]}`)

	s := New(storage)
	doc, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs()))
	if err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	want := models.Tier{ID: 7, Name: "Sketch", Info: []string{}, Price: 10}
	if len(doc.Tiers) != 1 || !reflect.DeepEqual(doc.Tiers[0], want) {
		t.Errorf("stored tier = %+v, want %+v", doc.Tiers, want)
	}
	if len(doc.Rules) != 2 {
		t.Errorf("absent rules should default, got %v", doc.Rules)
	}
}

func TestInitializeRepairsTiersInsteadOfReseeding(t *testing.T) {
	storage := dal.NewMemoryStorage()
	blob := `{"artistName":"Mitzi","rules":["Mine"],"tiers":[` +
		`{"id":3,"name":"A","price":10},` +
		`{"id":3,"name":"B","price":-5},` +
		`{"id":9,"name":"C","price":20},` +
		`{"name":"D","price":30}]}`
	storage.Save(context.Background(), DefaultKey, blob)

	s := New(storage)
	doc, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs()))
	if err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	if doc.ArtistName != "Mitzi" || !reflect.DeepEqual(doc.Rules, []string{"Mine"}) {
		t.Errorf("stored fields lost: artist %q rules %v", doc.ArtistName, doc.Rules)
	}
	if len(doc.Tiers) != 4 {
		t.Fatalf("expected 4 repaired tiers, got %+v", doc.Tiers)
	}
	if err := Validate(doc); err != nil {
		t.Errorf("repaired document should validate: %v", err)
	}
	if doc.Tiers[0].ID != 3 || doc.Tiers[2].ID != 9 {
		t.Errorf("valid ids should be kept, got %d and %d", doc.Tiers[0].ID, doc.Tiers[2].ID)
	}
	if doc.Tiers[1].ID <= 9 || doc.Tiers[3].ID <= 9 {
		t.Errorf("repaired ids should follow the largest stored id, got %d and %d", doc.Tiers[1].ID, doc.Tiers[3].ID)
	}
	if doc.Tiers[1].Price != 0 {
		t.Errorf("negative price should be reset to 0, got %v", doc.Tiers[1].Price)
	}
	if id := s.IDs().Next(); id <= doc.MaxTierID() {
		t.Errorf("next id %d collides with repaired ids", id)
	}
}

func TestInitializeKeepsCorruptBlobWhenBackupFails(t *testing.T) {
	storage := newFlakyStorage()
	storage.MemoryStorage.Save(context.Background(), DefaultKey, "{not json")
	storage.failSave = true

	s := New(storage)
	doc, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs()))
	if !IsDegraded(err) {
		t.Fatalf("expected degraded error, got %v", err)
	}
	if len(doc.Tiers) != 3 {
		t.Errorf("default should be used in memory, got %d tiers", len(doc.Tiers))
	}
	raw, _ := storage.MemoryStorage.Load(context.Background(), DefaultKey)
	if raw != "{not json" {
		t.Errorf("blob should be left untouched, got %q", raw)
	}
}

func TestInitializeLoadFailureIsDegraded(t *testing.T) {
	storage := newFlakyStorage()
	storage.failLoad = true

	s := New(storage)
	doc, err := s.Initialize(context.Background(), DefaultKey, DefaultDocument(s.IDs()))
	if !IsDegraded(err) {
		t.Fatalf("expected degraded error, got %v", err)
	}
	if len(doc.Tiers) != 3 {
		t.Errorf("should fall back to the default in memory, got %d tiers", len(doc.Tiers))
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())

	want := s.Get()
	want.ArtistName = "Round Trip"
	want.Currency = models.CurrencyEuro
	want.Font = &models.FontDescriptor{Family: "Lobster", Files: map[string]string{"regular": "https://fonts/lobster.ttf"}}

	if err := s.Set(context.Background(), want); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if got := s.Get(); !reflect.DeepEqual(got, want) {
		t.Errorf("Get() after Set() = %+v, want %+v", got, want)
	}
}

func TestGetReturnsIsolatedSnapshot(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())

	snap := s.Get()
	snap.Rules[0] = "mutated"
	snap.Tiers[0].Info[0] = "mutated"

	fresh := s.Get()
	if fresh.Rules[0] == "mutated" || fresh.Tiers[0].Info[0] == "mutated" {
		t.Error("mutating a snapshot must not change the store")
	}
}

func TestSetPersistenceFailureIsDegraded(t *testing.T) {
	storage := newFlakyStorage()
	s := newTestStore(t, storage)

	storage.setFailSave(true)
	next := s.Get()
	next.ArtistName = "Offline"

	err := s.Set(context.Background(), next)
	if err == nil {
		t.Fatal("expected a persistence error")
	}
	if !IsDegraded(err) {
		t.Errorf("error should be degraded, got %v", err)
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Op != "save" {
		t.Errorf("expected *PersistenceError for save, got %#v", err)
	}

	if got := s.Get().ArtistName; got != "Offline" {
		t.Errorf("in-memory value should update despite failure, got %q", got)
	}
}

func TestSetRejectsInvalidDocument(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())
	before := s.Get()

	bad := s.Get()
	bad.Currency = "yen"
	if err := s.Set(context.Background(), bad); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}

	dup := s.Get()
	dup.Tiers = append(dup.Tiers, dup.Tiers[0])
	if err := s.Set(context.Background(), dup); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for duplicate ids, got %v", err)
	}

	if !reflect.DeepEqual(s.Get(), before) {
		t.Error("rejected Set must leave the document unchanged")
	}
}

func TestApplyTypedChanges(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())

	doc, err := s.Apply(context.Background(),
		SetArtistName{Name: "Mitzi"},
		SetCurrency{Currency: models.CurrencyEuro},
		SetLink{Type: models.LinkInstagram, Value: "@mitzi"},
		SetColors{Colors: models.Colors{Background: "rose", Text: "slate"}},
		SetTemplate{Template: models.TemplateList},
	)
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	if doc.ArtistName != "Mitzi" || doc.Currency != models.CurrencyEuro || doc.Links.Instagram != "@mitzi" ||
		doc.Colors.Background != "rose" || doc.Template != models.TemplateList {
		t.Errorf("changes not applied: %+v", doc)
	}
}

func TestApplyIsAtomic(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())

	_, err := s.Apply(context.Background(),
		SetArtistName{Name: "Should not stick"},
		SetCurrency{Currency: "yen"},
	)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	if s.Get().ArtistName != "" {
		t.Error("a failed batch must not apply earlier changes")
	}
}

func TestFontChanges(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())
	ctx := context.Background()

	font := models.FontDescriptor{Family: "Pacifico", Files: map[string]string{"regular": "http://x/p.ttf"}}
	doc, err := s.Apply(ctx, SetFont{Font: font})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Font == nil || doc.Font.Family != "Pacifico" {
		t.Fatalf("font not set: %+v", doc.Font)
	}

	doc, err = s.Apply(ctx, ClearFont{})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Font != nil {
		t.Error("font should be cleared")
	}

	if _, err := s.Apply(ctx, SetFont{}); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("empty family should be rejected, got %v", err)
	}
}

func TestParseChange(t *testing.T) {
	tests := []struct {
		field   string
		value   string
		want    Change
		wantErr bool
	}{
		{"artistName", `"Mitzi"`, SetArtistName{Name: "Mitzi"}, false},
		{"currency", `"euro"`, SetCurrency{Currency: models.CurrencyEuro}, false},
		{"template", `"list"`, SetTemplate{Template: models.TemplateList}, false},
		{"links.discord", `"mitzi#1"`, SetLink{Type: models.LinkDiscord, Value: "mitzi#1"}, false},
		{"colors", `{"background":"rose","text":"zinc"}`, SetColors{Colors: models.Colors{Background: "rose", Text: "zinc"}}, false},
		{"font", `null`, ClearFont{}, false},
		{"artistName", `42`, nil, true},
		{"tiers", `[]`, nil, true},
	}

	for _, tt := range tests {
		got, err := ParseChange(tt.field, json.RawMessage(tt.value))
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("ParseChange(%s, %s) expected ErrInvalidDocument, got %v", tt.field, tt.value, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseChange(%s, %s) failed: %v", tt.field, tt.value, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseChange(%s, %s) = %#v, want %#v", tt.field, tt.value, got, tt.want)
		}
	}
}

func TestResetRestoresDefault(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())
	ctx := context.Background()

	initial := s.Get()
	s.Apply(ctx, SetArtistName{Name: "Changed"})

	doc, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}
	if !reflect.DeepEqual(doc, initial) {
		t.Errorf("Reset() = %+v, want %+v", doc, initial)
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	ps := pubsub.New()
	ch := ps.Subscribe()
	defer ps.Unsubscribe(ch)

	storage := newFlakyStorage()
	s := newTestStore(t, storage, WithPublisher(ps))

	s.Apply(context.Background(), SetArtistName{Name: "Evented"})

	select {
	case ev := <-ch:
		if ev.Type != EventDocumentUpdated {
			t.Errorf("event type = %q, want %q", ev.Type, EventDocumentUpdated)
		}
		if ev.Payload["degraded"] != false {
			t.Errorf("expected degraded=false, got %v", ev.Payload["degraded"])
		}
	default:
		t.Fatal("expected an event after mutation")
	}

	storage.setFailSave(true)
	s.Apply(context.Background(), SetArtistName{Name: "Degraded"})
	ev := <-ch
	if ev.Payload["degraded"] != true {
		t.Errorf("expected degraded=true, got %v", ev.Payload["degraded"])
	}
}

func TestConcurrentModifyLosesNoUpdates(t *testing.T) {
	s := newTestStore(t, dal.NewMemoryStorage())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Modify(ctx, func(doc models.Document) (models.Document, error) {
				doc.Rules = append(doc.Rules, "rule")
				return doc, nil
			})
		}()
	}
	wg.Wait()

	if got := len(s.Get().Rules); got != 52 {
		t.Errorf("expected 52 rules, got %d", got)
	}
}

func TestIDGeneratorAdvance(t *testing.T) {
	g := NewIDGenerator()
	if g.Next() != 1 || g.Next() != 2 {
		t.Fatal("generator should start at 1 and increase")
	}
	g.Advance(10)
	if id := g.Next(); id != 11 {
		t.Errorf("Next() after Advance(10) = %d, want 11", id)
	}
	g.Advance(5)
	if id := g.Next(); id != 12 {
		t.Errorf("Advance must never move backwards, got %d", id)
	}
}
