package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Client records sheet exports in ClickHouse for usage analytics
type Client struct {
	conn driver.Conn
}

// NewClient connects, pings and makes sure the exports table exists
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	c := &Client{conn: conn}
	if err := c.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClientWithConn wraps an existing connection
func NewClientWithConn(conn driver.Conn) *Client {
	return &Client{conn: conn}
}

const createExportsTable = `
	CREATE TABLE IF NOT EXISTS sheet_exports (
		id          String,
		format      LowCardinality(String),
		template    LowCardinality(String),
		artist_name String,
		tiers       UInt32,
		bytes       UInt64,
		source      LowCardinality(String),
		created_at  DateTime64(3)
	) ENGINE = MergeTree
	ORDER BY (created_at, id)
`

// EnsureSchema creates the exports table when missing
func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createExportsTable); err != nil {
		return fmt.Errorf("failed to create sheet_exports table: %w", err)
	}
	return nil
}

// RecordExport stores one export event
func (c *Client) RecordExport(ctx context.Context, ev models.ExportEvent) error {
	err := c.conn.Exec(ctx, `
		INSERT INTO sheet_exports (id, format, template, artist_name, tiers, bytes, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Format), string(ev.Template), ev.ArtistName,
		uint32(ev.Tiers), uint64(ev.Bytes), ev.Source, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record export %s: %w", ev.ID, err)
	}
	return nil
}

// ExportCounts returns the number of exports per format since the given time
func (c *Client) ExportCounts(ctx context.Context, since time.Time) (map[models.ExportFormat]uint64, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT format, count() AS exports
		FROM sheet_exports
		WHERE created_at >= ?
		GROUP BY format`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ExportFormat]uint64)
	for rows.Next() {
		var format string
		var n uint64
		if err := rows.Scan(&format, &n); err != nil {
			return nil, err
		}
		counts[models.ExportFormat(format)] = n
	}
	return counts, rows.Err()
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
