package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
)

// MockClickHouseClient keeps export events in memory for local development
type MockClickHouseClient struct {
	mu     sync.Mutex
	events []models.ExportEvent
}

// NewMockClickHouseClient creates a mock ClickHouse client
func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")
	return &MockClickHouseClient{}
}

// RecordExport appends ev
func (m *MockClickHouseClient) RecordExport(ctx context.Context, ev models.ExportEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// ExportCounts counts recorded events per format since the given time
func (m *MockClickHouseClient) ExportCounts(ctx context.Context, since time.Time) (map[models.ExportFormat]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[models.ExportFormat]uint64)
	for _, ev := range m.events {
		if !ev.CreatedAt.Before(since) {
			counts[ev.Format]++
		}
	}
	return counts, nil
}

// Events returns a copy of everything recorded
func (m *MockClickHouseClient) Events() []models.ExportEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExportEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Close is a no-op for mock client
func (m *MockClickHouseClient) Close() error {
	return nil
}
