package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/auth"
	"github.com/Billy-Davies-2/mitzi/internal/clickhouse"
	"github.com/Billy-Davies-2/mitzi/internal/config"
	"github.com/Billy-Davies-2/mitzi/internal/fonts"
	"github.com/Billy-Davies-2/mitzi/internal/handlers"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/mocks"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/pubsub"
)

// Analytics records exports and reports on them
type Analytics interface {
	RecordExport(ctx context.Context, ev models.ExportEvent) error
	ExportCounts(ctx context.Context, since time.Time) (map[models.ExportFormat]uint64, error)
	Close() error
}

// OpenEvents builds the change-event fan-out. NATS_URL selects a NATS JetStream
// bridge; in development without one an embedded NATS server is started; otherwise
// events stay in process. The returned func releases the upstream.
func OpenEvents(cfg *config.Config) (*pubsub.PubSub, func(), error) {
	switch {
	case cfg.NATS.URL != "":
		bridge, err := pubsub.NewNATSPubSub(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, nil, err
		}
		return pubsub.NewWithUpstream(bridge), bridge.Close, nil
	case cfg.IsDevelopment():
		logger.Info("Starting embedded NATS server for local development")
		opts := pubsub.DefaultEmbeddedNATSOptions()
		opts.Subject = cfg.NATS.Subject
		embedded, err := pubsub.NewEmbeddedNATSPubSub(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		logger.Info("Embedded NATS server ready", "url", embedded.ServerURL())
		return pubsub.NewWithUpstream(embedded), embedded.Close, nil
	}
	logger.Warn("NATS_URL not set, change events are not shared between instances")
	return pubsub.New(), func() {}, nil
}

// OpenAnalytics connects to ClickHouse when CLICKHOUSE_ADDR is set. Development
// falls back to an in-memory recorder; production without an address records nothing.
func OpenAnalytics(cfg *config.Config) (Analytics, error) {
	if cfg.ClickHouse.Addr != "" {
		c, err := clickhouse.NewClient(cfg.ClickHouse.Addr, cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to ClickHouse", "address", cfg.ClickHouse.Addr, "database", cfg.ClickHouse.Database)
		return c, nil
	}
	if cfg.IsDevelopment() {
		return mocks.NewMockClickHouseClient(), nil
	}
	logger.Info("CLICKHOUSE_ADDR not set, exports are not recorded")
	return nil, nil
}

// NewAuth returns mock auth in development and Authentik otherwise
func NewAuth(cfg *config.Config) (auth.AuthProvider, error) {
	if cfg.IsDevelopment() {
		logger.Info("Using mock authentication for local development")
		return auth.NewMockAuth(), nil
	}

	a := cfg.Authentik
	if a.BaseURL == "" || a.ClientID == "" || a.ClientSecret == "" {
		return nil, fmt.Errorf("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID and AUTHENTIK_CLIENT_SECRET are required outside development")
	}
	logger.Info("Using Authentik", "url", a.BaseURL)
	return auth.NewAuthentikAuth(&auth.AuthentikConfig{
		BaseURL:      a.BaseURL,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		RedirectURL:  a.RedirectURL,
	}), nil
}

// NewFonts builds the font registry, loader and catalog. The catalog is nil unless
// FONT_CATALOG_URL or FONT_CATALOG_KEY is set.
func NewFonts(cfg *config.Config) (*fonts.Loader, handlers.FontCatalog, error) {
	registry, err := fonts.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	loader := fonts.NewLoader(registry)

	if cfg.Fonts.CatalogURL == "" && cfg.Fonts.CatalogKey == "" {
		return loader, nil, nil
	}
	return loader, fonts.NewCatalog(cfg.Fonts.CatalogURL, cfg.Fonts.CatalogKey, nil), nil
}
