package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"media-shelf/internal/database"
	"media-shelf/internal/logging"
	"media-shelf/internal/media"
)

// IDResponse describes a registered path. Path is relative to the media
// directory.
type IDResponse struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	IsTitle *bool  `json:"isTitle,omitempty"`
}

var errOutsideMediaDir = errors.New("path is outside the media directory")

// resolveMediaPath turns a client-supplied path into an absolute path under
// the media directory.
func (h *Handlers) resolveMediaPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path is required")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(h.mediaDir, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(h.mediaDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideMediaDir
	}
	return p, nil
}

func (h *Handlers) relativePath(p string) string {
	if rel, err := filepath.Rel(h.mediaDir, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}

// GetID returns the identifier of ?path=.
func (h *Handlers) GetID(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, ok, err := h.db.GetID(r.Context(), path)
	if err != nil {
		logging.Error("Failed to look up id for %s: %v", path, err)
		writeJSONError(w, "Failed to look up path", http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSONError(w, "Path is not indexed", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, IDResponse{ID: id, Path: h.relativePath(path)})
}

// GetPath resolves an identifier back to its path.
func (h *Handlers) GetPath(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entry, ok, err := h.db.GetPath(r.Context(), id)
	if err != nil {
		logging.Error("Failed to look up path for %s: %v", id, err)
		writeJSONError(w, "Failed to look up id", http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSONError(w, "Unknown id", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, IDResponse{
		ID:      entry.ID,
		Path:    h.relativePath(entry.Path),
		IsTitle: &entry.IsTitle,
	})
}

// GetThumbnail serves the cached thumbnail for an id, generating and
// storing it on first request.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	thumb, ok, err := h.db.GetThumbnail(ctx, id)
	if err != nil {
		logging.Error("Failed to read thumbnail %s: %v", id, err)
		writeJSONError(w, "Failed to read thumbnail", http.StatusInternalServerError)
		return
	}
	if ok {
		serveThumbnail(w, thumb, "hit")
		return
	}

	entry, ok, err := h.db.GetPath(ctx, id)
	if err != nil {
		logging.Error("Failed to look up path for %s: %v", id, err)
		writeJSONError(w, "Failed to look up id", http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSONError(w, "Unknown id", http.StatusNotFound)
		return
	}

	generated, err := h.thumbGen.Generate(entry)
	if err != nil {
		if errors.Is(err, media.ErrUnsupported) || errors.Is(err, media.ErrNoCover) {
			logging.Debug("No thumbnail for %s: %v", entry.Path, err)
			writeJSONError(w, "No thumbnail available", http.StatusNotFound)
			return
		}
		logging.Warn("Thumbnail generation failed for %s: %v", entry.Path, err)
		writeJSONError(w, "Thumbnail generation failed", http.StatusInternalServerError)
		return
	}

	// A concurrent request may have stored it first; either copy is fine.
	if err := h.db.SaveThumbnail(ctx, id, generated); err != nil && !errors.Is(err, database.ErrUniqueViolation) {
		logging.Error("Failed to store thumbnail for %s: %v", entry.Path, err)
	}

	serveThumbnail(w, &generated, "miss")
}

func serveThumbnail(w http.ResponseWriter, thumb *database.Thumbnail, cache string) {
	w.Header().Set("Content-Type", thumb.Mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", thumb.Filename))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("X-Thumbnail-Cache", cache)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(thumb.Data); err != nil {
		logging.Debug("failed to write thumbnail: %v", err)
	}
}
