package fonts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/gogpu/gg/text"
)

// RegularVariant is the only variant the loader fetches
const RegularVariant = "regular"

// LoadResult reports a successful registration
type LoadResult struct {
	Count int                   `json:"count"`
	Font  models.FontDescriptor `json:"font"`
}

// Loader fetches web fonts and registers them for rendering
type Loader struct {
	client   *resty.Client
	registry *Registry
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithClient replaces the HTTP client used for fetching
func WithClient(c *resty.Client) LoaderOption {
	return func(l *Loader) {
		l.client = c
	}
}

func NewLoader(registry *Registry, opts ...LoaderOption) *Loader {
	l := &Loader{
		client:   resty.New().SetTimeout(30 * time.Second),
		registry: registry,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry loaded fonts go into
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Load fetches the regular variant of desc over https and registers it under
// desc.Family. It does not retry.
func (l *Loader) Load(ctx context.Context, desc models.FontDescriptor) (LoadResult, error) {
	url := secureURL(desc.Files[RegularVariant])
	fail := func(err error) (LoadResult, error) {
		logger.Warn("Font load failed", "family", desc.Family, "url", url, "error", err)
		return LoadResult{}, &FontLoadError{Family: desc.Family, URL: url, Err: err}
	}

	if strings.TrimSpace(desc.Family) == "" {
		return fail(errors.New("family is required"))
	}
	if url == "" {
		return fail(errors.New("descriptor has no regular variant"))
	}

	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return fail(fmt.Errorf("fetch: %w", err))
	}
	if resp.IsError() {
		return fail(fmt.Errorf("fetch: unexpected status %d", resp.StatusCode()))
	}

	src, err := text.NewFontSource(resp.Body())
	if err != nil {
		return fail(fmt.Errorf("decode: %w", err))
	}

	l.registry.Register(desc.Family, src)
	logger.Info("Font loaded", "family", desc.Family, "bytes", len(resp.Body()))

	return LoadResult{Count: 1, Font: *desc.Clone()}, nil
}

// secureURL upgrades plain http font URLs, which catalogs still hand out, to https
func secureURL(url string) string {
	if strings.HasPrefix(url, "http://") {
		return "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}
