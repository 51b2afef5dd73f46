package render

import (
	"strings"

	"github.com/Billy-Davies-2/mitzi/internal/models"
)

// shades of one palette hue: a light surface, an accent and a dark ink
type shades struct {
	light  string
	accent string
	dark   string
}

var hues = map[string]shades{
	"slate":   {"#f1f5f9", "#64748b", "#1e293b"},
	"gray":    {"#f3f4f6", "#6b7280", "#1f2937"},
	"zinc":    {"#f4f4f5", "#71717a", "#27272a"},
	"red":     {"#fee2e2", "#ef4444", "#991b1b"},
	"orange":  {"#ffedd5", "#f97316", "#9a3412"},
	"amber":   {"#fef3c7", "#f59e0b", "#92400e"},
	"yellow":  {"#fef9c3", "#eab308", "#854d0e"},
	"lime":    {"#ecfccb", "#84cc16", "#3f6212"},
	"green":   {"#dcfce7", "#22c55e", "#166534"},
	"emerald": {"#d1fae5", "#10b981", "#065f46"},
	"teal":    {"#ccfbf1", "#14b8a6", "#115e59"},
	"cyan":    {"#cffafe", "#06b6d4", "#155e75"},
	"sky":     {"#e0f2fe", "#0ea5e9", "#075985"},
	"blue":    {"#dbeafe", "#3b82f6", "#1e40af"},
	"indigo":  {"#e0e7ff", "#6366f1", "#3730a3"},
	"violet":  {"#ede9fe", "#8b5cf6", "#5b21b6"},
	"purple":  {"#f3e8ff", "#a855f7", "#6b21a8"},
	"fuchsia": {"#fae8ff", "#d946ef", "#86198f"},
	"pink":    {"#fce7f3", "#ec4899", "#9d174d"},
	"rose":    {"#ffe4e6", "#f43f5e", "#9f1239"},
}

const defaultHue = "sky"

// palette is the resolved set of colors a sheet is drawn with
type palette struct {
	background string
	surface    string
	accent     string
	ink        string
	muted      string
}

func lookupHue(name string) (shades, bool) {
	s, ok := hues[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// resolvePalette maps the document's color names onto hex colors. A "#rrggbb"
// value is used as-is; unknown names fall back to sky.
func resolvePalette(c models.Colors) palette {
	bg, ok := lookupHue(c.Background)
	if !ok {
		bg = hues[defaultHue]
	}
	fg, ok := lookupHue(c.Text)
	if !ok {
		fg = hues[defaultHue]
	}

	p := palette{
		background: bg.light,
		surface:    "#ffffff",
		accent:     bg.accent,
		ink:        fg.dark,
		muted:      fg.accent,
	}
	if isHex(c.Background) {
		p.background = c.Background
	}
	if isHex(c.Text) {
		p.ink = c.Text
	}
	return p
}

func isHex(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
