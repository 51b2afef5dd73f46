package handlers

import (
	"errors"
	"net/http"
	"path"
	"path/filepath"

	"github.com/Billy-Davies-2/mitzi/internal/dal"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
)

// ImageHandler serves tier images from the database image table when the storage
// driver has one, and from <staticDir>/images otherwise
func ImageHandler(images dal.ImageStore, staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := path.Clean("/" + r.URL.Path)

		if images != nil {
			data, err := images.GetImage(r.Context(), ref)
			if err == nil && len(data) > 0 {
				w.Header().Set("Content-Type", http.DetectContentType(data))
				w.Header().Set("Cache-Control", "public, max-age=31536000")
				w.Write(data)
				return
			}
			if err != nil && !errors.Is(err, dal.ErrNotFound) {
				logger.Warn("Failed to read image from database", "path", ref, "error", err)
			}
		}

		http.ServeFile(w, r, filepath.Join(staticDir, filepath.FromSlash(ref)))
	}
}
