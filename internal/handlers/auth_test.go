package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
)

type silentMailer struct{}

func (silentMailer) IsEnabled() bool                                    { return true }
func (silentMailer) Send(context.Context, string, string, string) error { return nil }

func newTestHandler(t *testing.T) (*Handler, *store.MemoryAccounts) {
	t.Helper()
	accounts := store.NewMemoryAccounts()

	issuer, err := services.NewTokenIssuer([]byte("test-secret"), "ripple-backend", "ripple-clients", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	auth := services.NewAuthService(accounts, issuer, services.NewLockoutPolicy(5, 30*time.Minute), silentMailer{}, services.AuthConfig{
		BcryptCost: bcrypt.MinCost,
	})
	return New(auth, nil, nil, accounts), accounts
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)

	var res Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return rec, res
}

func signup(t *testing.T, h *Handler) {
	t.Helper()
	rec, res := postJSON(t, h.Signup, "/api/auth/signup", SignupRequest{
		Handle:   "alice",
		Email:    "alice@example.com",
		Password: "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, res.Success)
}

func TestSignupEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, res := postJSON(t, h.Signup, "/api/auth/signup", SignupRequest{
		Handle:   "alice",
		Email:    "alice@example.com",
		Password: "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, res.Success)

	data := res.Data.(map[string]any)
	assert.NotEmpty(t, data["accessToken"])
	assert.NotEmpty(t, data["refreshToken"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "alice", user["handle"])
	assert.NotContains(t, user, "password_hash")

	// Duplicate handle conflicts.
	rec, res = postJSON(t, h.Signup, "/api/auth/signup", SignupRequest{
		Handle:   "alice",
		Email:    "other@example.com",
		Password: "Passw0rd!",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, res.Success)
}

func TestSignupValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, res := postJSON(t, h.Signup, "/api/auth/signup", SignupRequest{
		Handle:   "_bad",
		Email:    "a@b.co",
		Password: "Passw0rd!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, res.Success)
}

func TestSigninReasons(t *testing.T) {
	h, _ := newTestHandler(t)
	signup(t, h)

	rec, res := postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "nobody", Password: "Passw0rd!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ReasonUserNotFound, res.Reason)

	rec, res = postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ReasonInvalidPassword, res.Reason)
}

func TestSigninLockoutReason(t *testing.T) {
	h, _ := newTestHandler(t)
	signup(t, h)

	for i := 0; i < 4; i++ {
		rec, res := postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "alice", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, ReasonInvalidPassword, res.Reason)
	}

	// The fifth failure reports the lock, not a plain bad password.
	rec, res := postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ReasonAccountLocked, res.Reason)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// The correct password cannot open a locked account.
	rec, res = postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "alice", Password: "Passw0rd!"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ReasonAccountLocked, res.Reason)
}

func TestSigninSuccess(t *testing.T) {
	h, _ := newTestHandler(t)
	signup(t, h)

	rec, res := postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "alice", Password: "Passw0rd!"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, res.Success)

	data := res.Data.(map[string]any)
	assert.NotEmpty(t, data["accessToken"])
	assert.NotEmpty(t, data["refreshToken"])
}

func TestRefreshEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	signup(t, h)

	_, res := postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "alice", Password: "Passw0rd!"})
	refresh := res.Data.(map[string]any)["refreshToken"].(string)

	rec, res := postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := res.Data.(map[string]any)["refreshToken"].(string)
	assert.NotEqual(t, refresh, rotated)

	// The consumed token is rejected.
	rec, res = postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, res.Success)

	rec, _ = postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	signup(t, h)

	_, res := postJSON(t, h.Signin, "/api/auth/signin", SigninRequest{Identifier: "alice", Password: "Passw0rd!"})
	refresh := res.Data.(map[string]any)["refreshToken"].(string)

	rec, _ := postJSON(t, h.Logout, "/api/auth/logout", RefreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Idempotent.
	rec, _ = postJSON(t, h.Logout, "/api/auth/logout", RefreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyAndResetEndpointsSilent(t *testing.T) {
	h, _ := newTestHandler(t)
	signup(t, h)

	rec, res := postJSON(t, h.RequestVerification, "/api/auth/verify/request", EmailRequest{Email: "nobody@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code, "unknown emails do not leak")
	assert.True(t, res.Success)

	rec, res = postJSON(t, h.RequestReset, "/api/auth/reset/request", EmailRequest{Email: "nobody@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, res.Success)

	rec, res = postJSON(t, h.ConfirmVerification, "/api/auth/verify/confirm", ConfirmTokenRequest{Token: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, res.Success)

	rec, res = postJSON(t, h.ConfirmReset, "/api/auth/reset/confirm", ConfirmResetRequest{Token: "bogus", NewPassword: "NewPassw0rd!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, res.Success)
}
