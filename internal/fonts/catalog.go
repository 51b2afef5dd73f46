package fonts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/go-resty/resty/v2"
)

// CatalogLimit caps how many catalog entries are offered
const CatalogLimit = 100

// DefaultCatalogURL is the Google Fonts web font listing
const DefaultCatalogURL = "https://www.googleapis.com/webfonts/v1/webfonts"

type catalogResponse struct {
	Items []models.FontDescriptor `json:"items"`
}

// Catalog lists selectable fonts from an external web font catalog. The first
// successful listing is cached for the life of the process.
type Catalog struct {
	client *resty.Client
	url    string
	key    string

	mu    sync.Mutex
	cache []models.FontDescriptor
}

func NewCatalog(url, key string, client *resty.Client) *Catalog {
	if url == "" {
		url = DefaultCatalogURL
	}
	if client == nil {
		client = resty.New().SetTimeout(15 * time.Second)
	}
	return &Catalog{client: client, url: url, key: key}
}

// List returns up to CatalogLimit font descriptors in catalog order
func (c *Catalog) List(ctx context.Context) ([]models.FontDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache != nil {
		return cloneDescriptors(c.cache), nil
	}

	req := c.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if c.key != "" {
		req.SetQueryParam("key", c.key)
	}

	var body catalogResponse
	resp, err := req.SetResult(&body).Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch font catalog: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("font catalog returned status %d", resp.StatusCode())
	}

	items := body.Items
	if len(items) > CatalogLimit {
		items = items[:CatalogLimit]
	}
	c.cache = items
	logger.Info("Font catalog loaded", "fonts", len(items))

	return cloneDescriptors(items), nil
}

func cloneDescriptors(in []models.FontDescriptor) []models.FontDescriptor {
	out := make([]models.FontDescriptor, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
