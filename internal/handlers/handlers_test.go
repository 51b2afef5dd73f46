package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/auth"
	"github.com/Billy-Davies-2/mitzi/internal/dal"
	"github.com/Billy-Davies-2/mitzi/internal/fonts"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/mocks"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/pubsub"
	"github.com/Billy-Davies-2/mitzi/internal/render"
	"github.com/Billy-Davies-2/mitzi/internal/store"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func init() {
	logger.Init()
}

// brokenStorage loads fine and fails every save once armed
type brokenStorage struct {
	*dal.MemoryStorage
	broken atomic.Bool
}

func (b *brokenStorage) Save(ctx context.Context, key, value string) error {
	if b.broken.Load() {
		return errors.New("disk full")
	}
	return b.MemoryStorage.Save(ctx, key, value)
}

func (b *brokenStorage) Ping(ctx context.Context) error {
	if b.broken.Load() {
		return errors.New("disk full")
	}
	return nil
}

type fakeCatalog struct {
	list []models.FontDescriptor
	err  error
}

func (c fakeCatalog) List(ctx context.Context) ([]models.FontDescriptor, error) {
	return c.list, c.err
}

type env struct {
	storage  *brokenStorage
	store    *store.Store
	events   *pubsub.PubSub
	recorder *mocks.MockClickHouseClient
	fontSrv  *httptest.Server
	registry *fonts.Registry
	mux      *http.ServeMux
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		storage:  &brokenStorage{MemoryStorage: dal.NewMemoryStorage()},
		events:   pubsub.New(),
		recorder: mocks.NewMockClickHouseClient(),
	}

	e.store = store.New(e.storage, store.WithPublisher(e.events))
	_, err := e.store.Initialize(context.Background(), store.DefaultKey, store.DefaultDocument(e.store.IDs()))
	require.NoError(t, err)

	e.fontSrv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/font.ttf" {
			w.Write(goregular.TTF)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(e.fontSrv.Close)

	e.registry, err = fonts.NewRegistry()
	require.NoError(t, err)
	loader := fonts.NewLoader(e.registry, fonts.WithClient(resty.NewWithClient(e.fontSrv.Client())))
	catalog := fakeCatalog{list: []models.FontDescriptor{{Family: "Lobster"}}}
	renderer := render.NewRenderer(e.registry, render.WithRecorder(e.recorder), render.WithFontLoader(loader))

	api := NewAPIHandlers(e.store, e.events, loader, catalog, renderer).WithStats(e.recorder)
	e.mux = http.NewServeMux()
	api.Register(e.mux, func(next http.HandlerFunc) http.HandlerFunc { return next })
	return e
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeSheet(t *testing.T, rec *httptest.ResponseRecorder) sheetResponse {
	t.Helper()
	var resp sheetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func tierNames(doc models.Document) []string {
	names := make([]string, len(doc.Tiers))
	for i, t := range doc.Tiers {
		names[i] = t.Name
	}
	return names
}

func TestGetSheet(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/sheet", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, []string{"Basic", "Advanced", "Premium"}, tierNames(doc))

	assert.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodPost, "/api/sheet", "").Code)
}

func TestAddTierAssignsID(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/tiers/add", `{"name":"Rush","info":["48h"],"price":80}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeSheet(t, rec)
	require.NotNil(t, resp.Tier)
	assert.Equal(t, int64(4), resp.Tier.ID)
	assert.Equal(t, []string{"Basic", "Advanced", "Premium", "Rush"}, tierNames(resp.Sheet))
	assert.Empty(t, rec.Header().Get(DegradedHeader))
}

func TestTierErrors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"duplicate id", "/api/tiers/add", `{"id":1,"name":"Again","price":1}`, http.StatusBadRequest},
		{"negative price", "/api/tiers/add", `{"name":"Free","price":-1}`, http.StatusBadRequest},
		{"malformed json", "/api/tiers/add", `{"name":`, http.StatusBadRequest},
		{"update missing", "/api/tiers/update", `{"id":99,"name":"Ghost","price":1}`, http.StatusNotFound},
		{"remove missing is a no-op", "/api/tiers/remove", `{"id":99}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Len(t, e.store.Get().Tiers, 3)
}

func TestRemoveAndMoveTier(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/tiers/remove", `{"id":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Basic", "Premium"}, tierNames(decodeSheet(t, rec).Sheet))

	rec = e.do(t, http.MethodPost, "/api/tiers/move", `{"id":3,"index":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Premium", "Basic"}, tierNames(decodeSheet(t, rec).Sheet))
}

func TestRules(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/rules/add", `{"text":"No refunds"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Don't be a jerk", "Nothing illegal", "No refunds"}, decodeSheet(t, rec).Sheet.Rules)

	rec = e.do(t, http.MethodPost, "/api/rules/remove", `{"text":"No refunds"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Don't be a jerk", "Nothing illegal"}, decodeSheet(t, rec).Sheet.Rules)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/rules/add", `{"text":"  "}`).Code)
}

func TestUpdateSheet(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/sheet/update", `{"field":"artistName","value":"Mitzi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Mitzi", decodeSheet(t, rec).Sheet.ArtistName)

	rec = e.do(t, http.MethodPost, "/api/sheet/update",
		`[{"field":"currency","value":"euro"},{"field":"links.twitter","value":"@mitzi"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := decodeSheet(t, rec).Sheet
	assert.Equal(t, models.CurrencyEuro, doc.Currency)
	assert.Equal(t, "@mitzi", doc.Links.Twitter)
}

func TestUpdateSheetIsAtomic(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/sheet/update",
		`[{"field":"artistName","value":"Half"},{"field":"currency","value":"yen"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.store.Get().ArtistName)

	rec = e.do(t, http.MethodPost, "/api/sheet/update", `{"field":"mood","value":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetSheet(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/tiers/remove", `{"id":1}`)

	rec := e.do(t, http.MethodPost, "/api/sheet/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeSheet(t, rec).Sheet.Tiers, 3)
}

func TestDegradedPersistenceStillSucceeds(t *testing.T) {
	e := newEnv(t)
	e.storage.broken.Store(true)

	rec := e.do(t, http.MethodPost, "/api/rules/add", `{"text":"Offline rule"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(DegradedHeader))

	resp := decodeSheet(t, rec)
	assert.Contains(t, resp.Warning, "persistence unavailable")
	assert.Contains(t, e.store.Get().Rules, "Offline rule")

	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/readyz", "").Code)
}

func TestFonts(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/fonts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lobster")

	body, _ := json.Marshal(models.FontDescriptor{
		Family: "Served",
		Files:  map[string]string{"regular": strings.Replace(e.fontSrv.URL, "https://", "http://", 1) + "/font.ttf"},
	})
	rec = e.do(t, http.MethodPost, "/api/fonts/load", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeSheet(t, rec)
	assert.Equal(t, 1, resp.Loaded)
	require.NotNil(t, resp.Sheet.Font)
	assert.Equal(t, "Served", resp.Sheet.Font.Family)

	rec = e.do(t, http.MethodPost, "/api/fonts/load",
		`{"family":"Missing","files":{"regular":"`+e.fontSrv.URL+`/nope.ttf"}}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Served", e.store.Get().Font.Family, "failed load must not change the selection")

	rec = e.do(t, http.MethodGet, "/api/fonts/loaded", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"families":["Served"]}`, rec.Body.String())
}

func TestExportLoadsSelectedFont(t *testing.T) {
	e := newEnv(t)

	body, _ := json.Marshal(map[string]any{
		"field": "font",
		"value": models.FontDescriptor{Family: "Persisted", Files: map[string]string{"regular": e.fontSrv.URL + "/font.ttf"}},
	})
	rec := e.do(t, http.MethodPost, "/api/sheet/update", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, e.registry.Has("Persisted"), "setting the field does not fetch the font")

	rec = e.do(t, http.MethodGet, "/api/export/png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, e.registry.Has("Persisted"), "export should register the selected font")

	require.NoError(t, e.store.Set(context.Background(), func() models.Document {
		doc := e.store.Get()
		doc.Font = &models.FontDescriptor{Family: "Gone", Files: map[string]string{"regular": e.fontSrv.URL + "/gone.ttf"}}
		return doc
	}()))
	rec = e.do(t, http.MethodGet, "/api/export/png", "")
	assert.Equal(t, http.StatusOK, rec.Code, "an unreachable font falls back to the default face")
	assert.False(t, e.registry.Has("Gone"))
}

func TestExport(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/export/png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), render.PNGFilename)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = e.do(t, http.MethodGet, "/api/export/xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), render.XLSXFilename)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/export/pdf", "").Code)

	counts, err := e.recorder.ExportCounts(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counts[models.ExportPNG])
	assert.Equal(t, uint64(1), counts[models.ExportXLSX])

	rec = e.do(t, http.MethodGet, "/api/stats/exports?since=2000-01-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats struct {
		Counts map[string]uint64 `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, map[string]uint64{"png": 1, "xlsx": 1}, stats.Counts)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/stats/exports?since=yesterday", "").Code)
}

type imageTable map[string][]byte

func (m imageTable) GetImage(ctx context.Context, path string) ([]byte, error) {
	if data, ok := m[path]; ok {
		return data, nil
	}
	return nil, dal.ErrNotFound
}

func TestImageHandler(t *testing.T) {
	static := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(static, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "images", "disk.txt"), []byte("from disk"), 0o644))

	h := ImageHandler(imageTable{"/images/db.png": []byte("\x89PNG\r\n\x1a\nrest")}, static)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/images/db.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = get("/images/disk.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from disk", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/images/none.png").Code)
}

func TestRequireEditor(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

	call := func(user *auth.User) int {
		req := httptest.NewRequest(http.MethodPost, "/api/rules/add", nil)
		if user != nil {
			req = req.WithContext(auth.WithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		RequireEditor(ok)(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call(nil))
	assert.Equal(t, http.StatusForbidden, call(&auth.User{Groups: []string{"viewers"}}))
	assert.Equal(t, http.StatusNoContent, call(&auth.User{Groups: []string{auth.EditorGroup}}))
}

func TestEventsSSEStreamsChanges(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Contains(t, lines.Text(), "connected")

	e.do(t, http.MethodPost, "/api/rules/add", `{"text":"Live"}`)

	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: ") {
			assert.Contains(t, lines.Text(), store.EventDocumentUpdated)
			return
		}
	}
	t.Fatal("no change event received")
}
