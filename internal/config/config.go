package config

import (
	"os"
	"strconv"
)

// Config is the service configuration, read from the environment
type Config struct {
	Port        string
	GRPCPort    string
	GRPCToken   string
	Environment string
	StaticDir   string

	Store struct {
		Driver     string // memory, file, sqlite, postgres or redis
		Key        string
		Dir        string
		SQLiteFile string
	}
	DatabaseURL string
	Redis       struct {
		Addr     string
		Password string
		DB       int
	}
	NATS struct {
		URL     string
		Subject string
	}
	ClickHouse struct {
		Addr     string
		Database string
		User     string
		Password string
	}
	Authentik struct {
		BaseURL      string
		ClientID     string
		ClientSecret string
		RedirectURL  string
	}
	Fonts struct {
		CatalogURL string
		CatalogKey string
	}
	Log struct {
		Level  string
		Format string
	}
}

// LoadFromEnv reads the configuration, applying defaults for unset variables
func LoadFromEnv() *Config {
	cfg := &Config{}
	cfg.Port = getEnv("PORT", "3000")
	cfg.GRPCPort = getEnv("GRPC_PORT", "50051")
	cfg.GRPCToken = os.Getenv("GRPC_TOKEN")
	cfg.Environment = getEnv("ENVIRONMENT", "development")
	cfg.StaticDir = getEnv("STATIC_DIR", "static")

	cfg.Store.Driver = getEnv("STORE_DRIVER", "memory")
	cfg.Store.Key = getEnv("STORE_KEY", "savedCommissionData")
	cfg.Store.Dir = getEnv("STORE_DIR", "data")
	cfg.Store.SQLiteFile = getEnv("SQLITE_FILE", "dev.sqlite")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = parseInt(os.Getenv("REDIS_DB"), 0)

	cfg.NATS.URL = os.Getenv("NATS_URL")
	cfg.NATS.Subject = getEnv("NATS_SUBJECT", "sheet.events")

	cfg.ClickHouse.Addr = os.Getenv("CLICKHOUSE_ADDR")
	cfg.ClickHouse.Database = getEnv("CLICKHOUSE_DB", "default")
	cfg.ClickHouse.User = getEnv("CLICKHOUSE_USER", "default")
	cfg.ClickHouse.Password = os.Getenv("CLICKHOUSE_PASSWORD")

	cfg.Authentik.BaseURL = os.Getenv("AUTHENTIK_BASE_URL")
	cfg.Authentik.ClientID = os.Getenv("AUTHENTIK_CLIENT_ID")
	cfg.Authentik.ClientSecret = os.Getenv("AUTHENTIK_CLIENT_SECRET")
	cfg.Authentik.RedirectURL = getEnv("AUTHENTIK_REDIRECT_URL", "http://localhost:3000/auth/callback")

	cfg.Fonts.CatalogURL = os.Getenv("FONT_CATALOG_URL")
	cfg.Fonts.CatalogKey = os.Getenv("FONT_CATALOG_KEY")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	return cfg
}

// IsDevelopment reports whether local stand-ins (embedded NATS, mock auth) are used
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
