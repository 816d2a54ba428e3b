package handlers

import (
	"net/http"
	"runtime"

	"media-shelf/internal/database"
	"media-shelf/internal/indexer"
	"media-shelf/internal/logging"
	"media-shelf/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status            string          `json:"status"`
	Ready             bool            `json:"ready"`
	Version           string          `json:"version"`
	Uptime            string          `json:"uptime"`
	Indexing          bool            `json:"indexing"`
	LastIndexed       string          `json:"lastIndexed,omitempty"`
	LastIndex         *indexer.Result `json:"lastIndex,omitempty"`
	InitialIndexError string          `json:"initialIndexError,omitempty"`
	DatabaseError     string          `json:"databaseError,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`

	Counts *database.Counts `json:"counts,omitempty"`
}

// HealthCheck returns 200 once the initial index has finished and 503
// before that.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.indexer.GetHealthStatus()

	response := HealthResponse{
		Status:            statusStarting,
		Ready:             status.Ready,
		Version:           startup.Version,
		Uptime:            status.Uptime,
		Indexing:          status.Indexing,
		LastIndex:         status.LastResult,
		InitialIndexError: status.InitialIndexError,
		GoVersion:         runtime.Version(),
		NumGoroutine:      runtime.NumGoroutine(),
	}

	if status.Ready {
		response.Status = statusHealthy
	}
	if !status.LastIndexed.IsZero() {
		response.LastIndexed = status.LastIndexed.Format("2006-01-02T15:04:05Z07:00")
	}
	if status.InitialIndexError != "" {
		response.Status = statusDegraded
	}

	counts, err := h.db.Counts(r.Context())
	if err != nil {
		logging.Warn("Health check could not read counts: %v", err)
		response.DatabaseError = err.Error()
		response.Status = statusDegraded
	} else {
		response.Counts = &counts
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

// LivenessCheck always returns 200 while the server is running.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when the initial index has finished.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, startup.GetBuildInfo())
}
