package mocks

import (
	"github.com/Billy-Davies-2/mitzi/internal/dal"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
)

// MockPostgresStorage stands in for Postgres with SQLite for local development
type MockPostgresStorage struct {
	*dal.SQLiteStorage
}

// NewMockPostgresStorage opens sqliteFile as the document store
func NewMockPostgresStorage(sqliteFile string) (*MockPostgresStorage, error) {
	logger.Info("Using MOCK Postgres (SQLite) for local development", "file", sqliteFile)

	storage, err := dal.NewSQLiteStorage(sqliteFile)
	if err != nil {
		return nil, err
	}
	return &MockPostgresStorage{SQLiteStorage: storage}, nil
}
