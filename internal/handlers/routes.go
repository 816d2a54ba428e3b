package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"media-shelf/internal/middleware"
)

// Router builds the HTTP routes. Request metrics are recorded per route
// template; access logging is left to the caller.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Unauthenticated
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", h.Logout).Methods(http.MethodPost)

	// Any authenticated user
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RequireAuth)
	api.HandleFunc("/auth/check", h.CheckAuth).Methods(http.MethodGet)
	api.HandleFunc("/id", h.GetID).Methods(http.MethodGet)
	api.HandleFunc("/path/{id}", h.GetPath).Methods(http.MethodGet)
	api.HandleFunc("/thumbnail/{id}", h.GetThumbnail).Methods(http.MethodGet)

	// Administrators
	admin := api.NewRoute().Subrouter()
	admin.Use(h.RequireAdmin)
	admin.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{username}", h.UpdateUser).Methods(http.MethodPut)
	admin.HandleFunc("/users/{username}", h.DeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/maintenance/optimize", h.Optimize).Methods(http.MethodPost)
	admin.HandleFunc("/maintenance/reindex", h.Reindex).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "Not found", http.StatusNotFound)
	})

	return r
}
