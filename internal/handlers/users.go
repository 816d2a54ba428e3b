package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"media-shelf/internal/database"
	"media-shelf/internal/logging"
	"media-shelf/internal/validate"
)

// UserRequest is the body of POST /api/users and PUT /api/users/{username}.
// On update an empty Username keeps the current name and an empty Password
// keeps the current password.
type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

// writeUserError maps account errors to status codes.
func writeUserError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, validate.ErrInvalidUsername), errors.Is(err, validate.ErrInvalidPassword):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrUniqueViolation):
		writeJSONError(w, "Username already exists", http.StatusConflict)
	case errors.Is(err, database.ErrUserNotFound):
		writeJSONError(w, "User not found", http.StatusNotFound)
	default:
		logging.Error("Failed to %s: %v", op, err)
		writeJSONError(w, "Failed to "+op, http.StatusInternalServerError)
	}
}

// ListUsers returns every account.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers(r.Context())
	if err != nil {
		writeUserError(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser adds an account.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.db.CreateUser(r.Context(), req.Username, req.Password, req.IsAdmin); err != nil {
		writeUserError(w, "create user", err)
		return
	}

	logging.Info("User %q created (admin=%v)", req.Username, req.IsAdmin)
	writeJSON(w, http.StatusCreated, database.UserSummary{Username: req.Username, IsAdmin: req.IsAdmin})
}

// UpdateUser renames an account, changes its password or admin flag.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	original := mux.Vars(r)["username"]

	var req UserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		req.Username = original
	}

	if s, ok := sessionFrom(r.Context()); ok && s.username == original && !req.IsAdmin {
		writeJSONError(w, "Cannot remove your own admin rights", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateUser(r.Context(), original, req.Username, req.Password, req.IsAdmin); err != nil {
		writeUserError(w, "update user", err)
		return
	}

	logging.Info("User %q updated (username=%q admin=%v password changed=%v)",
		original, req.Username, req.IsAdmin, req.Password != "")
	writeJSON(w, http.StatusOK, database.UserSummary{Username: req.Username, IsAdmin: req.IsAdmin})
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if s, ok := sessionFrom(r.Context()); ok && s.username == username {
		writeJSONError(w, "Cannot delete your own account", http.StatusBadRequest)
		return
	}

	if err := h.db.DeleteUser(r.Context(), username); err != nil {
		writeUserError(w, "delete user", err)
		return
	}

	logging.Info("User %q deleted", username)
	w.WriteHeader(http.StatusNoContent)
}
