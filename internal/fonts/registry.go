package fonts

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

var ErrFontLoadFailed = errors.New("font load failed")

// FontLoadError describes a failed fetch or decode. Nothing is registered when it
// is returned.
type FontLoadError struct {
	Family string
	URL    string
	Err    error
}

func (e *FontLoadError) Error() string {
	return fmt.Sprintf("%v: %s (%s): %v", ErrFontLoadFailed, e.Family, e.URL, e.Err)
}

func (e *FontLoadError) Unwrap() error {
	return e.Err
}

func (e *FontLoadError) Is(target error) bool {
	return target == ErrFontLoadFailed
}

// Registry maps font families to parsed font sources for the renderer.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sources  map[string]*text.FontSource
	fallback *text.FontSource
}

// NewRegistry creates a registry with Go Regular as the fallback face
func NewRegistry() (*Registry, error) {
	fallback, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fallback font: %w", err)
	}
	return &Registry{
		sources:  make(map[string]*text.FontSource),
		fallback: fallback,
	}, nil
}

// Register stores src under family, replacing any earlier registration
func (r *Registry) Register(family string, src *text.FontSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[family] = src
}

// Has reports whether family is registered
func (r *Registry) Has(family string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[family]
	return ok
}

// Families lists registered families in name order
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sources))
	for family := range r.sources {
		out = append(out, family)
	}
	sort.Strings(out)
	return out
}

// Face returns family at size, or the fallback face when family is unknown
func (r *Registry) Face(family string, size float64) text.Face {
	r.mu.RLock()
	src, ok := r.sources[family]
	r.mu.RUnlock()

	if !ok {
		src = r.fallback
	}
	return src.Face(size)
}
