package handlers

import (
	"encoding/json"
	"net/http"

	"media-shelf/internal/database"
	"media-shelf/internal/indexer"
	"media-shelf/internal/logging"
	"media-shelf/internal/startup"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Thumbnailer renders a thumbnail for a registered path.
type Thumbnailer interface {
	Generate(entry database.PathIdentity) (database.Thumbnail, error)
}

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	db       *database.Database
	indexer  *indexer.Indexer
	thumbGen Thumbnailer
	mediaDir string
}

// New wires the handlers to the database, indexer and thumbnail generator.
func New(db *database.Database, idx *indexer.Indexer, thumbGen Thumbnailer, config *startup.Config) *Handlers {
	return &Handlers{
		db:       db,
		indexer:  idx,
		thumbGen: thumbGen,
		mediaDir: config.MediaDir,
	}
}

// writeJSON encodes v as JSON with the given status code. Encoding errors
// are only logged since the header is already sent.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes {"error": message} with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
