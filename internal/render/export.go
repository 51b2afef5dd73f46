package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/fonts"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/google/uuid"
)

const (
	PNGFilename  = "commission-sheet.png"
	XLSXFilename = "commission-sheet.xlsx"
)

// ErrUnsupportedFormat is returned for export formats other than png and xlsx
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Recorder stores export events for analytics
type Recorder interface {
	RecordExport(ctx context.Context, ev models.ExportEvent) error
}

// FontLoader fetches a font family the registry does not have yet
type FontLoader interface {
	Load(ctx context.Context, desc models.FontDescriptor) (fonts.LoadResult, error)
}

// Artifact is a rendered export ready to download
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Event       models.ExportEvent
}

// Renderer produces export artifacts from document snapshots
type Renderer struct {
	png      pngRenderer
	recorder Recorder
	loader   FontLoader
	now      func() time.Time
}

// Option configures a Renderer
type Option func(*Renderer)

// WithImages sets how tier images are resolved. Without it every tier gets the
// placeholder.
func WithImages(images ImageResolver) Option {
	return func(r *Renderer) {
		r.png.images = images
	}
}

// WithRecorder records an ExportEvent for each artifact
func WithRecorder(rec Recorder) Option {
	return func(r *Renderer) {
		r.recorder = rec
	}
}

// WithFontLoader loads the document's selected font before a PNG render when the
// registry does not have it, e.g. after a restart or when the font was set directly.
func WithFontLoader(l FontLoader) Option {
	return func(r *Renderer) {
		r.loader = l
	}
}

func NewRenderer(registry *fonts.Registry, opts ...Option) *Renderer {
	r := &Renderer{
		png: pngRenderer{fonts: registry},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderPNG draws doc as a PNG image
func (r *Renderer) RenderPNG(ctx context.Context, doc models.Document) ([]byte, error) {
	r.ensureFont(ctx, doc.Font)
	return r.png.render(ctx, doc)
}

// ensureFont registers the selected font if missing. A failure falls back to the
// default face.
func (r *Renderer) ensureFont(ctx context.Context, font *models.FontDescriptor) {
	if r.loader == nil || font == nil || r.png.fonts == nil || r.png.fonts.Has(font.Family) {
		return
	}
	if _, err := r.loader.Load(ctx, *font); err != nil {
		logger.Warn("Selected font unavailable, rendering with the default face", "family", font.Family, "error", err)
	}
}

// RenderXLSX writes doc as a price list workbook
func (r *Renderer) RenderXLSX(ctx context.Context, doc models.Document) ([]byte, error) {
	return renderXLSX(doc)
}

// Export renders doc in format and records the export. source names the surface
// that asked for it ("http", "grpc", "cli"). A recording failure is logged and
// does not fail the export.
func (r *Renderer) Export(ctx context.Context, doc models.Document, format models.ExportFormat, source string) (Artifact, error) {
	var a Artifact
	var err error

	switch format {
	case models.ExportPNG:
		a.Filename, a.ContentType = PNGFilename, "image/png"
		a.Data, err = r.RenderPNG(ctx, doc)
	case models.ExportXLSX:
		a.Filename, a.ContentType = XLSXFilename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		a.Data, err = r.RenderXLSX(ctx, doc)
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Artifact{}, err
	}

	a.Event = models.ExportEvent{
		ID:         uuid.NewString(),
		Format:     format,
		Template:   doc.Template,
		ArtistName: doc.ArtistName,
		Tiers:      len(doc.Tiers),
		Bytes:      len(a.Data),
		Source:     source,
		CreatedAt:  r.now().UTC(),
	}
	logger.Info("Sheet exported", "id", a.Event.ID, "format", format, "bytes", len(a.Data), "source", source)

	if r.recorder != nil {
		if err := r.recorder.RecordExport(ctx, a.Event); err != nil {
			logger.Warn("Failed to record export", "id", a.Event.ID, "error", err)
		}
	}
	return a, nil
}
