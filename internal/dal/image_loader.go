package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Billy-Davies-2/mitzi/internal/logger"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// LoadImagesIntoDatabase copies image files from imagesDir into the images table,
// keyed by their public path (/images/<file>).
func LoadImagesIntoDatabase(ctx context.Context, db *sql.DB, imagesDir string) (int, error) {
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list image files: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		data, err := os.ReadFile(filepath.Join(imagesDir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("failed to read image file %s: %w", entry.Name(), err)
		}

		imagePath := "/images/" + entry.Name()
		_, err = db.ExecContext(ctx, `
			INSERT INTO images (path, data)
			VALUES ($1, $2)
			ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data
		`, imagePath, data)
		if err != nil {
			return loaded, fmt.Errorf("failed to store image %s: %w", entry.Name(), err)
		}

		logger.Debug("Loaded image into database", "path", imagePath, "bytes", len(data))
		loaded++
	}

	return loaded, nil
}

// MigrateImages loads staticDir/images into the database. A missing directory is skipped.
func (p *PostgresStorage) MigrateImages(ctx context.Context, staticDir string) (int, error) {
	imagesDir := filepath.Join(staticDir, "images")
	if _, err := os.Stat(imagesDir); os.IsNotExist(err) {
		return 0, nil
	}
	return LoadImagesIntoDatabase(ctx, p.db, imagesDir)
}

// PutImage stores image bytes under path
func (p *PostgresStorage) PutImage(ctx context.Context, path string, data []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO images (path, data)
		VALUES ($1, $2)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data
	`, path, data)
	return err
}

// GetImage retrieves image bytes by path. Missing images return ErrNotFound.
func (p *PostgresStorage) GetImage(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM images WHERE path = $1`, path).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
