package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ripplehq/ripple-backend/internal/middleware"
	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
	"github.com/ripplehq/ripple-backend/pkg/utils"
)

// Machine-readable reasons for failed credential submissions.
const (
	ReasonUserNotFound    = "USER_NOT_FOUND"
	ReasonInvalidPassword = "INVALID_PASSWORD"
	ReasonAccountLocked   = "ACCOUNT_LOCKED"
)

type SignupRequest struct {
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type SigninRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ConfirmTokenRequest struct {
	Token string `json:"token"`
}

type ConfirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Signup handles account registration.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.Auth.Register(r.Context(), services.RegisterInput{
		Handle:      req.Handle,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		var verr *utils.ValidationError
		switch {
		case errors.As(err, &verr):
			respondError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, store.ErrDuplicateHandle):
			respondError(w, http.StatusConflict, "Handle is already taken")
		case errors.Is(err, store.ErrDuplicateEmail):
			respondError(w, http.StatusConflict, "An account with this email already exists")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to create account")
		}
		return
	}

	respondCreated(w, "Account created", map[string]any{
		"user":             res.Account.Public(),
		"accessToken":      res.AccessToken,
		"refreshToken":     res.RefreshToken,
		"verificationSent": res.VerificationSent,
	})
}

// Signin handles credential submission.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Identifier and password are required")
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		var locked *services.LockedError
		switch {
		case errors.As(err, &locked):
			remaining := locked.Remaining(time.Now())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())))
			respondJSON(w, http.StatusForbidden, Response{
				Success: false,
				Message: "Account is temporarily locked due to repeated failed logins",
				Reason:  ReasonAccountLocked,
				Data: map[string]any{
					"lockedUntil":       locked.Until,
					"retryAfterSeconds": int(remaining.Seconds()),
				},
			})
		case errors.Is(err, services.ErrUserNotFound):
			respondReason(w, http.StatusUnauthorized, "No account matches that handle or email", ReasonUserNotFound)
		case errors.Is(err, services.ErrInvalidCredentials):
			respondReason(w, http.StatusUnauthorized, "Incorrect password", ReasonInvalidPassword)
		case errors.Is(err, services.ErrAccountInactive):
			respondError(w, http.StatusForbidden, "Account is deactivated")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to sign in")
		}
		return
	}

	respondOK(w, "Signed in", map[string]any{
		"user":         res.Account.Public(),
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

// Refresh rotates a refresh token into a new token pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	res, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRefreshInvalid):
			respondError(w, http.StatusUnauthorized, "Refresh token is invalid or expired")
		case errors.Is(err, services.ErrAccountInactive):
			respondError(w, http.StatusForbidden, "Account is deactivated")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to refresh session")
		}
		return
	}

	respondOK(w, "Session refreshed", map[string]any{
		"user":         res.Account.Public(),
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

// Logout revokes the submitted refresh token. Unknown tokens succeed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	respondOK(w, "Logged out", nil)
}

// LogoutAll revokes every refresh token for the signed-in account.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	if err := h.Auth.LogoutAll(r.Context(), p.AccountID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	respondOK(w, "Logged out everywhere", nil)
}

// RequestVerification re-sends the email-verification link. Always 200 so
// the endpoint does not confirm which addresses exist.
func (h *Handler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Auth.RequestVerification(r.Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrMailUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "Email delivery is not available")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to send verification email")
		return
	}
	respondOK(w, "If that email is registered, a verification link has been sent", nil)
}

// ConfirmVerification consumes the emailed verification token.
func (h *Handler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	var req ConfirmTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Auth.ConfirmVerification(r.Context(), req.Token); err != nil {
		if errors.Is(err, services.ErrChallengeInvalid) {
			respondError(w, http.StatusBadRequest, "Verification link is invalid or expired")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}
	respondOK(w, "Email verified", nil)
}

// RequestReset starts a password reset. Always 200 for unknown addresses.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Auth.RequestReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrMailUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "Email delivery is not available")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to send reset email")
		return
	}
	respondOK(w, "If that email is registered, a reset link has been sent", nil)
}

// ConfirmReset consumes the emailed reset token and installs a new password.
func (h *Handler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Auth.ConfirmReset(r.Context(), req.Token, req.NewPassword); err != nil {
		var verr *utils.ValidationError
		switch {
		case errors.As(err, &verr):
			respondError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, services.ErrChallengeInvalid):
			respondError(w, http.StatusBadRequest, "Reset link is invalid or expired")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to reset password")
		}
		return
	}
	respondOK(w, "Password updated. Please sign in again.", nil)
}

// Me returns the signed-in account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	respondOK(w, "OK", map[string]any{"user": p.Account.Public()})
}
