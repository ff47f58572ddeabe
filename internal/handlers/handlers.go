package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
)

// Handler bundles the services the HTTP layer depends on.
type Handler struct {
	Auth     *services.AuthService
	Posts    *services.PostService
	Uploads  *services.UploadService
	Accounts store.Accounts
}

func New(auth *services.AuthService, posts *services.PostService, uploads *services.UploadService, accounts store.Accounts) *Handler {
	return &Handler{
		Auth:     auth,
		Posts:    posts,
		Uploads:  uploads,
		Accounts: accounts,
	}
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

func respondOK(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func respondCreated(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Response{Success: false, Message: message})
}

func respondReason(w http.ResponseWriter, status int, message, reason string) {
	respondJSON(w, status, Response{Success: false, Message: message, Reason: reason})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
