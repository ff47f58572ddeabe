package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ripplehq/ripple-backend/internal/middleware"
	"github.com/ripplehq/ripple-backend/internal/models"
	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
	"github.com/ripplehq/ripple-backend/pkg/utils"
)

const (
	maxDisplayNameLength = 80
	maxBioLength         = 500
)

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// UpdateProfile updates the signed-in account's public profile fields.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())

	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.DisplayName) > maxDisplayNameLength {
		respondError(w, http.StatusBadRequest, "Display name is too long")
		return
	}
	if len(req.Bio) > maxBioLength {
		respondError(w, http.StatusBadRequest, "Bio is too long")
		return
	}

	if err := h.Accounts.UpdateProfile(r.Context(), p.AccountID, req.DisplayName, req.Bio, req.AvatarURL); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	account, err := h.Accounts.ByID(r.Context(), p.AccountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	respondOK(w, "Profile updated", map[string]any{"user": account.Public()})
}

// ChangePassword updates the password after re-verifying the current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())

	var req ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.Auth.ChangePassword(r.Context(), p.AccountID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var verr *utils.ValidationError
		switch {
		case errors.As(err, &verr):
			respondError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, services.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to change password")
		}
		return
	}
	respondOK(w, "Password changed. Other sessions have been signed out.", nil)
}

// GetProfile returns a public profile by handle.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	account, err := h.Accounts.ByIdentifier(r.Context(), handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if !account.Active {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}
	respondOK(w, "OK", map[string]any{"user": account.Profile()})
}

func (h *Handler) accountFromURL(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return nil, false
	}
	account, err := h.Accounts.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Account not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "Failed to load account")
		return nil, false
	}
	return account, true
}

// DeactivateAccount marks an account inactive, clears its sessions, and
// keeps its content. Admin only.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.accountFromURL(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.SetActive(r.Context(), account.ID, false); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to deactivate account")
		return
	}
	if err := h.Auth.LogoutAll(r.Context(), account.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear sessions")
		return
	}
	respondOK(w, "Account deactivated", nil)
}

// ActivateAccount re-enables a deactivated account. Admin only.
func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.accountFromURL(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.SetActive(r.Context(), account.ID, true); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to activate account")
		return
	}
	respondOK(w, "Account activated", nil)
}

// SetAccountRole changes an account's role. Admin only.
func (h *Handler) SetAccountRole(w http.ResponseWriter, r *http.Request) {
	account, ok := h.accountFromURL(w, r)
	if !ok {
		return
	}

	var req SetRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role := models.Role(req.Role)
	if !models.ValidRole(role) {
		respondError(w, http.StatusBadRequest, "Unknown role")
		return
	}

	if err := h.Accounts.SetRole(r.Context(), account.ID, role); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}
	respondOK(w, "Role updated", nil)
}
