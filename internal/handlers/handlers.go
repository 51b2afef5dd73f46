package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/auth"
	"github.com/Billy-Davies-2/mitzi/internal/editor"
	"github.com/Billy-Davies-2/mitzi/internal/fonts"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/pubsub"
	"github.com/Billy-Davies-2/mitzi/internal/render"
	"github.com/Billy-Davies-2/mitzi/internal/store"
)

const (
	maxBodyBytes = 1 << 20

	// DegradedHeader is set on responses whose change was applied but not persisted
	DegradedHeader = "X-Persistence-Degraded"
)

// FontCatalog lists fonts the editor can pick from
type FontCatalog interface {
	List(ctx context.Context) ([]models.FontDescriptor, error)
}

// ExportStats summarizes recorded exports
type ExportStats interface {
	ExportCounts(ctx context.Context, since time.Time) (map[models.ExportFormat]uint64, error)
}

// APIHandlers contains all API handler methods
type APIHandlers struct {
	store    *store.Store
	tiers    *editor.TierEditor
	rules    *editor.RuleEditor
	loader   *fonts.Loader
	catalog  FontCatalog
	renderer *render.Renderer
	events   *pubsub.PubSub
	stats    ExportStats
}

// NewAPIHandlers creates a new API handlers instance. catalog may be nil.
func NewAPIHandlers(s *store.Store, ps *pubsub.PubSub, loader *fonts.Loader, catalog FontCatalog, renderer *render.Renderer) *APIHandlers {
	return &APIHandlers{
		store:    s,
		tiers:    editor.NewTierEditor(s),
		rules:    editor.NewRuleEditor(s),
		loader:   loader,
		catalog:  catalog,
		renderer: renderer,
		events:   ps,
	}
}

// WithStats enables /api/stats/exports
func (h *APIHandlers) WithStats(stats ExportStats) *APIHandlers {
	h.stats = stats
	return h
}

// Register mounts the API on mux. Mutating routes are wrapped with protect.
func (h *APIHandlers) Register(mux *http.ServeMux, protect func(http.HandlerFunc) http.HandlerFunc) {
	edit := func(next http.HandlerFunc) http.HandlerFunc {
		return protect(RequireEditor(next))
	}

	mux.HandleFunc("/api/sheet", h.GetSheet)
	mux.HandleFunc("/api/sheet/update", edit(h.UpdateSheet))
	mux.HandleFunc("/api/sheet/reset", edit(h.ResetSheet))

	mux.HandleFunc("/api/tiers/add", edit(h.AddTier))
	mux.HandleFunc("/api/tiers/update", edit(h.UpdateTier))
	mux.HandleFunc("/api/tiers/remove", edit(h.RemoveTier))
	mux.HandleFunc("/api/tiers/move", edit(h.MoveTier))

	mux.HandleFunc("/api/rules/add", edit(h.AddRule))
	mux.HandleFunc("/api/rules/remove", edit(h.RemoveRule))

	mux.HandleFunc("/api/fonts", h.ListFonts)
	mux.HandleFunc("/api/fonts/load", edit(h.LoadFont))
	mux.HandleFunc("/api/fonts/loaded", h.LoadedFonts)

	mux.HandleFunc("/api/export/", h.Export)
	mux.HandleFunc("/api/stats/exports", h.Stats)
	mux.HandleFunc("/api/events", h.EventsSSE)

	mux.HandleFunc("/api/health", h.Health)
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
}

// RequireEditor rejects authenticated users outside the editor groups. Requests
// that carry no user are passed through; authentication is the caller's concern.
func RequireEditor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if user := auth.GetUser(r); user != nil && !auth.CanEdit(user) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "editor role required"})
			return
		}
		next(w, r)
	}
}

// sheetResponse is returned by every mutation
type sheetResponse struct {
	Sheet   models.Document `json:"sheet"`
	Tier    *models.Tier    `json:"tier,omitempty"`
	Loaded  int             `json:"loaded,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrTierNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidDocument),
		errors.Is(err, editor.ErrDuplicateTier),
		errors.Is(err, editor.ErrInvalidTier),
		errors.Is(err, editor.ErrEmptyRule),
		errors.Is(err, render.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, fonts.ErrFontLoadFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeResult answers a mutation. A degraded commit still succeeds, with a warning.
func writeResult(w http.ResponseWriter, resp sheetResponse, err error) {
	if err != nil && !store.IsDegraded(err) {
		writeError(w, err)
		return
	}
	if err != nil {
		w.Header().Set(DegradedHeader, "true")
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		logger.Debug("Failed to decode request", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// GetSheet returns the current sheet
func (h *APIHandlers) GetSheet(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.store.Get())
}

type fieldChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// UpdateSheet applies one {field, value} change or a list of them atomically
func (h *APIHandlers) UpdateSheet(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}

	var patch []fieldChange
	var err error
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &patch)
	} else {
		var one fieldChange
		err = json.Unmarshal(raw, &one)
		patch = []fieldChange{one}
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid change: " + err.Error()})
		return
	}

	changes := make([]store.Change, 0, len(patch))
	for _, p := range patch {
		c, err := store.ParseChange(p.Field, p.Value)
		if err != nil {
			writeError(w, err)
			return
		}
		changes = append(changes, c)
	}

	logger.Info("Updating sheet", "changes", len(changes))
	doc, err := h.store.Apply(r.Context(), changes...)
	writeResult(w, sheetResponse{Sheet: doc}, err)
}

// ResetSheet restores the default sheet
func (h *APIHandlers) ResetSheet(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	logger.Info("Resetting sheet")
	doc, err := h.store.Reset(r.Context())
	writeResult(w, sheetResponse{Sheet: doc}, err)
}

// AddTier appends a tier. A zero id is assigned.
func (h *APIHandlers) AddTier(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var tier models.Tier
	if !decode(w, r, &tier) {
		return
	}

	added, doc, err := h.tiers.Add(r.Context(), tier)
	if err == nil || store.IsDegraded(err) {
		logger.Info("Added tier", "id", added.ID, "name", added.Name)
	}
	writeResult(w, sheetResponse{Sheet: doc, Tier: &added}, err)
}

// UpdateTier replaces the tier with the same id
func (h *APIHandlers) UpdateTier(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var tier models.Tier
	if !decode(w, r, &tier) {
		return
	}

	doc, err := h.tiers.Update(r.Context(), tier)
	writeResult(w, sheetResponse{Sheet: doc}, err)
}

// RemoveTier deletes a tier by id
func (h *APIHandlers) RemoveTier(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		ID int64 `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}

	logger.Info("Removing tier", "id", req.ID)
	doc, err := h.tiers.Remove(r.Context(), req.ID)
	writeResult(w, sheetResponse{Sheet: doc}, err)
}

// MoveTier moves a tier to a new position
func (h *APIHandlers) MoveTier(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		ID    int64 `json:"id"`
		Index int   `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}

	doc, err := h.tiers.Move(r.Context(), req.ID, req.Index)
	writeResult(w, sheetResponse{Sheet: doc}, err)
}

type ruleRequest struct {
	Text string `json:"text"`
}

// AddRule appends a rule
func (h *APIHandlers) AddRule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req ruleRequest
	if !decode(w, r, &req) {
		return
	}

	doc, err := h.rules.Add(r.Context(), req.Text)
	writeResult(w, sheetResponse{Sheet: doc}, err)
}

// RemoveRule removes the first rule with the given text
func (h *APIHandlers) RemoveRule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req ruleRequest
	if !decode(w, r, &req) {
		return
	}

	doc, err := h.rules.Remove(r.Context(), req.Text)
	writeResult(w, sheetResponse{Sheet: doc}, err)
}

// ListFonts returns the font catalog, or an empty list when none is configured
func (h *APIHandlers) ListFonts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.catalog == nil {
		writeJSON(w, http.StatusOK, []models.FontDescriptor{})
		return
	}

	list, err := h.catalog.List(r.Context())
	if err != nil {
		logger.Warn("Font catalog unavailable", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// LoadedFonts lists the families registered for rendering
func (h *APIHandlers) LoadedFonts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"families": h.loader.Registry().Families()})
}

// LoadFont fetches and registers a font, then selects it. A failed load leaves the
// current font selection untouched.
func (h *APIHandlers) LoadFont(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var desc models.FontDescriptor
	if !decode(w, r, &desc) {
		return
	}

	res, err := h.loader.Load(r.Context(), desc)
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.store.Apply(r.Context(), store.SetFont{Font: res.Font})
	writeResult(w, sheetResponse{Sheet: doc, Loaded: res.Count}, err)
}

// Export renders the sheet as /api/export/png or /api/export/xlsx
func (h *APIHandlers) Export(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	format := models.ExportFormat(strings.TrimPrefix(r.URL.Path, "/api/export/"))
	a, err := h.renderer.Export(r.Context(), h.store.Get(), format, "http")
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	w.Header().Set("X-Export-ID", a.Event.ID)
	w.Write(a.Data)
}

// Stats counts exports per format since ?since= (RFC 3339), default the last 30 days
func (h *APIHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export analytics not configured"})
		return
	}

	since := time.Now().AddDate(0, 0, -30)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
			return
		}
		since = t
	}

	counts, err := h.stats.ExportCounts(r.Context(), since)
	if err != nil {
		logger.Warn("Failed to read export stats", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since.UTC(), "counts": counts})
}

// Health reports liveness
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the durable medium answers
func (h *APIHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger.Warn("Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	eventChan := h.events.Subscribe()
	defer h.events.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush()
		}
	}
}
