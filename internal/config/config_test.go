package config

import "testing"

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "GRPC_PORT", "ENVIRONMENT", "STORE_DRIVER", "STORE_KEY", "REDIS_DB", "NATS_SUBJECT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := LoadFromEnv()

	if cfg.Port != "3000" || cfg.GRPCPort != "50051" {
		t.Errorf("unexpected ports %s/%s", cfg.Port, cfg.GRPCPort)
	}
	if cfg.Store.Driver != "memory" || cfg.Store.Key != "savedCommissionData" {
		t.Errorf("unexpected store defaults %+v", cfg.Store)
	}
	if cfg.NATS.Subject != "sheet.events" {
		t.Errorf("unexpected subject %q", cfg.NATS.Subject)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("unexpected redis db %d", cfg.Redis.DB)
	}
	if !cfg.IsDevelopment() {
		t.Error("default environment should be development")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("FONT_CATALOG_KEY", "secret")

	cfg := LoadFromEnv()

	if cfg.Port != "8080" {
		t.Errorf("Port = %s", cfg.Port)
	}
	if cfg.IsDevelopment() {
		t.Error("production must not be development")
	}
	if cfg.Store.Driver != "redis" || cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 3 {
		t.Errorf("unexpected redis config %+v / %+v", cfg.Store, cfg.Redis)
	}
	if cfg.Fonts.CatalogKey != "secret" {
		t.Errorf("CatalogKey = %q", cfg.Fonts.CatalogKey)
	}
}

func TestParseIntFallsBack(t *testing.T) {
	if got := parseInt("not-a-number", 7); got != 7 {
		t.Errorf("parseInt fallback = %d, want 7", got)
	}
}
