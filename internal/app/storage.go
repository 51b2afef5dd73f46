package app

import (
	"context"
	"fmt"

	"github.com/Billy-Davies-2/mitzi/internal/config"
	"github.com/Billy-Davies-2/mitzi/internal/dal"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/mocks"
	"github.com/Billy-Davies-2/mitzi/internal/store"
)

// OpenStorage opens the durable medium named by cfg.Store.Driver
func OpenStorage(ctx context.Context, cfg *config.Config) (dal.Storage, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		logger.Info("Using in-memory sheet storage")
		return dal.NewMemoryStorage(), nil
	case "file":
		s, err := dal.NewFileStorage(cfg.Store.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file storage: %w", err)
		}
		logger.Info("Using file sheet storage", "dir", cfg.Store.Dir)
		return s, nil
	case "sqlite":
		s, err := dal.NewSQLiteStorage(cfg.Store.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		logger.Info("Connected to SQLite database", "file", cfg.Store.SQLiteFile)
		return s, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			if cfg.IsDevelopment() {
				return mocks.NewMockPostgresStorage(cfg.Store.SQLiteFile)
			}
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		s, err := dal.NewPostgresStorage(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open Postgres: %w", err)
		}
		if n, err := s.MigrateImages(ctx, cfg.StaticDir); err != nil {
			logger.Warn("Failed to load tier images into Postgres", "error", err)
		} else if n > 0 {
			logger.Info("Loaded tier images into Postgres", "count", n)
		}
		logger.Info("Connected to Postgres database")
		return s, nil
	case "redis":
		s, err := dal.NewRedisStorage(ctx, dal.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open Redis: %w", err)
		}
		logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
		return s, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q (valid: memory, file, sqlite, postgres, redis)", cfg.Store.Driver)
}

// OpenStore opens storage and loads (or seeds) the sheet
func OpenStore(ctx context.Context, cfg *config.Config, opts ...store.Option) (*store.Store, error) {
	storage, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(ctx, storage, cfg.Store.Key, opts...)
}

// NewStore loads (or seeds) the sheet kept under key in storage. A degraded load
// is logged and the store is still returned. storage is closed on failure.
func NewStore(ctx context.Context, storage dal.Storage, key string, opts ...store.Option) (*store.Store, error) {
	s := store.New(storage, opts...)
	if _, err := s.Initialize(ctx, key, store.DefaultDocument(s.IDs())); err != nil {
		if !store.IsDegraded(err) {
			storage.Close()
			return nil, err
		}
		logger.Warn("Sheet storage degraded at startup", "error", err)
	}
	return s, nil
}

// ImageStore returns the database image table behind s, if the driver has one
func ImageStore(s dal.Storage) dal.ImageStore {
	if is, ok := s.(dal.ImageStore); ok {
		return is
	}
	return nil
}
