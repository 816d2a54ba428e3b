package handlers

import (
	"net/http"

	"media-shelf/internal/database"
	"media-shelf/internal/logging"
)

// OptimizeResponse reports what an optimize run removed.
type OptimizeResponse struct {
	database.OptimizeReport
	Vacuumed bool `json:"vacuumed"`
}

// Optimize drops ids for vanished paths and orphaned thumbnails, then
// compacts the file if anything was removed.
func (h *Handlers) Optimize(w http.ResponseWriter, r *http.Request) {
	report, err := h.db.Optimize(r.Context())
	if err != nil {
		logging.Error("Optimize failed: %v", err)
		writeJSONError(w, "Optimize failed", http.StatusInternalServerError)
		return
	}

	resp := OptimizeResponse{OptimizeReport: report}
	if report.DanglingIDs > 0 || report.OrphanedThumbnails > 0 {
		if err := h.db.Vacuum(r.Context()); err != nil {
			logging.Warn("Vacuum after optimize failed: %v", err)
		} else {
			resp.Vacuumed = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Reindex starts an index run in the background.
func (h *Handlers) Reindex(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsIndexing() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already_indexing"})
		return
	}

	h.indexer.TriggerIndex()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
