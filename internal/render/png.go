package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/Billy-Davies-2/mitzi/internal/fonts"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
)

const (
	sheetWidth    = 1200
	margin        = 48.0
	gutter        = 24.0
	padding       = 20.0
	radius        = 16.0
	cardColumns   = 3
	cardImageH    = 220.0
	listImageSize = 140.0
)

type faces struct {
	title   text.Face
	heading text.Face
	body    text.Face
	small   text.Face
}

func lineHeight(f text.Face) float64 {
	return math.Ceil(f.Metrics().LineHeight())
}

// sheet lays a document out top to bottom. With a nil dc it only advances y, which
// is how the final canvas height is measured before drawing.
type sheet struct {
	dc     *gg.Context
	doc    models.Document
	faces  faces
	colors palette
	images map[int64]*gg.ImageBuf
	y      float64
	err    error
}

func (s *sheet) fill() {
	if s.dc == nil {
		return
	}
	if err := s.dc.Fill(); err != nil && s.err == nil {
		s.err = err
	}
}

func (s *sheet) rect(x, y, w, h float64, hex string) {
	if s.dc == nil {
		return
	}
	s.dc.SetHexColor(hex)
	s.dc.DrawRoundedRectangle(x, y, w, h, radius)
	s.fill()
}

// text draws str with its top edge at y, anchored horizontally by ax (0 left, 0.5 center, 1 right)
func (s *sheet) text(face text.Face, hex, str string, x, y, ax float64) {
	if s.dc == nil || str == "" {
		return
	}
	s.dc.SetFont(face)
	s.dc.SetHexColor(hex)
	w, _ := s.dc.MeasureString(str)
	s.dc.DrawString(str, x-w*ax, y+face.Metrics().Ascent)
}

// paragraph wraps str to width and returns the height used
func (s *sheet) paragraph(face text.Face, hex, str string, x, y, width float64) float64 {
	lh := lineHeight(face)
	lines := text.WrapText(str, face, width, text.WrapWordChar)
	for i, line := range lines {
		s.text(face, hex, line.Text, x, y+float64(i)*lh, 0)
	}
	return float64(len(lines)) * lh
}

func (s *sheet) picture(tier models.Tier, x, y, w, h float64) {
	if s.dc == nil {
		return
	}
	img, ok := s.images[tier.ID]
	if !ok {
		s.rect(x, y, w, h, s.colors.accent)
		s.text(s.faces.small, s.colors.surface, "No image", x+w/2, y+h/2-lineHeight(s.faces.small)/2, 0.5)
		return
	}

	s.dc.DrawImageEx(img, gg.DrawImageOptions{
		X:         x,
		Y:         y,
		DstWidth:  w,
		DstHeight: h,
		SrcRect:   coverRect(img, w, h),
	})
}

// coverRect crops the source to the destination aspect ratio around its center
func coverRect(img *gg.ImageBuf, w, h float64) *image.Rectangle {
	sw, sh := img.Bounds()
	if sw == 0 || sh == 0 {
		return nil
	}
	target := w / h
	cw, ch := float64(sw), float64(sh)
	if cw/ch > target {
		cw = ch * target
	} else {
		ch = cw / target
	}
	x0 := (sw - int(cw)) / 2
	y0 := (sh - int(ch)) / 2
	r := image.Rect(x0, y0, x0+int(cw), y0+int(ch))
	return &r
}

func (s *sheet) header() {
	s.y = margin
	title := "Commissions"
	if name := strings.TrimSpace(s.doc.ArtistName); name != "" {
		title = name + "'s Commissions"
	}
	s.text(s.faces.title, s.colors.ink, title, sheetWidth/2, s.y, 0.5)
	s.y += lineHeight(s.faces.title)

	s.text(s.faces.small, s.colors.muted, "Prices in "+currencyName(s.doc.Currency), sheetWidth/2, s.y, 0.5)
	s.y += lineHeight(s.faces.small) + gutter
}

func (s *sheet) infoHeight(info []string, width float64) float64 {
	var h float64
	for _, line := range info {
		lines := text.WrapText("• "+line, s.faces.body, width, text.WrapWordChar)
		h += float64(len(lines)) * lineHeight(s.faces.body)
	}
	return h
}

func (s *sheet) info(info []string, x, y, width float64) float64 {
	var h float64
	for _, line := range info {
		h += s.paragraph(s.faces.body, s.colors.ink, "• "+line, x, y+h, width)
	}
	return h
}

func (s *sheet) cards() {
	contentW := sheetWidth - 2*margin
	cardW := (contentW - gutter*(cardColumns-1)) / cardColumns
	innerW := cardW - 2*padding

	for start := 0; start < len(s.doc.Tiers); start += cardColumns {
		row := s.doc.Tiers[start:min(start+cardColumns, len(s.doc.Tiers))]

		var rowH float64
		for _, t := range row {
			h := padding + cardImageH + padding + lineHeight(s.faces.heading) + lineHeight(s.faces.body) +
				s.infoHeight(t.Info, innerW) + padding
			rowH = max(rowH, h)
		}

		rowW := float64(len(row))*cardW + float64(len(row)-1)*gutter
		x := (sheetWidth - rowW) / 2
		for _, t := range row {
			s.rect(x, s.y, cardW, rowH, s.colors.surface)
			y := s.y + padding
			s.picture(t, x+padding, y, innerW, cardImageH)
			y += cardImageH + padding

			s.text(s.faces.heading, s.colors.ink, t.Name, x+padding, y, 0)
			s.text(s.faces.heading, s.colors.accent, formatPrice(t.Price, s.doc.Currency), x+cardW-padding, y, 1)
			y += lineHeight(s.faces.heading) + lineHeight(s.faces.body)/2

			s.info(t.Info, x+padding, y, innerW)
			x += cardW + gutter
		}
		s.y += rowH + gutter
	}
}

func (s *sheet) list() {
	contentW := sheetWidth - 2*margin
	textX := margin + padding + listImageSize + padding
	priceW := 160.0
	textW := contentW - (textX - margin) - priceW - padding

	for _, t := range s.doc.Tiers {
		bodyH := lineHeight(s.faces.heading) + s.infoHeight(t.Info, textW)
		rowH := max(listImageSize, bodyH) + 2*padding

		s.rect(margin, s.y, contentW, rowH, s.colors.surface)
		s.picture(t, margin+padding, s.y+padding, listImageSize, listImageSize)

		y := s.y + padding
		s.text(s.faces.heading, s.colors.ink, t.Name, textX, y, 0)
		s.text(s.faces.heading, s.colors.accent, formatPrice(t.Price, s.doc.Currency), sheetWidth-margin-padding, y, 1)
		s.info(t.Info, textX, y+lineHeight(s.faces.heading), textW)

		s.y += rowH + gutter / 2
	}
	s.y += gutter / 2
}

func (s *sheet) rules() {
	if len(s.doc.Rules) == 0 {
		return
	}
	contentW := sheetWidth - 2*margin
	innerW := contentW - 2*padding

	var bodyH float64
	for i, r := range s.doc.Rules {
		bodyH += float64(len(text.WrapText(fmt.Sprintf("%d. %s", i+1, r), s.faces.body, innerW, text.WrapWordChar))) *
			lineHeight(s.faces.body)
	}
	boxH := padding + lineHeight(s.faces.heading) + bodyH + padding

	s.rect(margin, s.y, contentW, boxH, s.colors.surface)
	y := s.y + padding
	s.text(s.faces.heading, s.colors.ink, "Rules", margin+padding, y, 0)
	y += lineHeight(s.faces.heading)
	for i, r := range s.doc.Rules {
		y += s.paragraph(s.faces.body, s.colors.ink, fmt.Sprintf("%d. %s", i+1, r), margin+padding, y, innerW)
	}
	s.y += boxH + gutter
}

func (s *sheet) footer() {
	var parts []string
	for _, lt := range []models.LinkType{models.LinkTwitter, models.LinkWebsite, models.LinkDiscord, models.LinkInstagram} {
		if v := strings.TrimSpace(s.doc.Links.Get(lt)); v != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", lt, v))
		}
	}
	if len(parts) > 0 {
		s.y += s.paragraph(s.faces.small, s.colors.muted, strings.Join(parts, "  |  "), margin, s.y, sheetWidth-2*margin)
	}
	s.y += margin
}

func (s *sheet) layout() {
	s.header()
	if s.doc.Template == models.TemplateList {
		s.list()
	} else {
		s.cards()
	}
	s.rules()
	s.footer()
}

func currencyName(c models.Currency) string {
	if c == models.CurrencyEuro {
		return "EUR"
	}
	return "USD"
}

// formatPrice prints whole amounts without decimals: "$45", "45,50 €"
func formatPrice(price float64, c models.Currency) string {
	amount := fmt.Sprintf("%.2f", price)
	if price == math.Trunc(price) {
		amount = fmt.Sprintf("%.0f", price)
	}
	if c == models.CurrencyEuro {
		return strings.Replace(amount, ".", ",", 1) + " " + c.Symbol()
	}
	return c.Symbol() + amount
}

// pngRenderer draws sheets with the gg rasterizer
type pngRenderer struct {
	fonts  *fonts.Registry
	images ImageResolver
}

func (r *pngRenderer) faces(doc models.Document) faces {
	family := ""
	if doc.Font != nil {
		family = doc.Font.Family
	}
	return faces{
		title:   r.fonts.Face(family, 56),
		heading: r.fonts.Face(family, 28),
		body:    r.fonts.Face(family, 18),
		small:   r.fonts.Face(family, 16),
	}
}

// loadImages resolves every tier image up front. Failures fall back to the
// placeholder drawing and are only logged.
func (r *pngRenderer) loadImages(ctx context.Context, tiers []models.Tier) map[int64]*gg.ImageBuf {
	out := make(map[int64]*gg.ImageBuf, len(tiers))
	if r.images == nil {
		return out
	}
	cache := make(map[string]*gg.ImageBuf)
	for _, t := range tiers {
		if buf, ok := cache[t.Image]; ok {
			if buf != nil {
				out[t.ID] = buf
			}
			continue
		}
		img, err := r.images.Resolve(ctx, t.Image)
		if err != nil {
			logger.Debug("Tier image unavailable, drawing placeholder", "tier", t.ID, "image", t.Image, "error", err)
			cache[t.Image] = nil
			continue
		}
		buf := gg.ImageBufFromImage(img)
		cache[t.Image] = buf
		out[t.ID] = buf
	}
	return out
}

func (r *pngRenderer) render(ctx context.Context, doc models.Document) ([]byte, error) {
	s := &sheet{
		doc:    doc,
		faces:  r.faces(doc),
		colors: resolvePalette(doc.Colors),
		images: r.loadImages(ctx, doc.Tiers),
	}

	s.layout()
	height := int(math.Ceil(s.y))

	dc := gg.NewContext(sheetWidth, height)
	defer dc.Close()
	dc.ClearWithColor(gg.Hex(s.colors.background))

	s.dc = dc
	s.layout()
	if s.err != nil {
		return nil, fmt.Errorf("draw sheet: %w", s.err)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
