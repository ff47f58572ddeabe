package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ripplehq/ripple-backend/internal/models"
	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
)

type noopMailer struct{}

func (noopMailer) IsEnabled() bool                                    { return false }
func (noopMailer) Send(context.Context, string, string, string) error { return services.ErrMailUnavailable }

func newAuthService(t *testing.T) (*services.AuthService, *store.MemoryAccounts, string) {
	t.Helper()
	accounts := store.NewMemoryAccounts()

	issuer, err := services.NewTokenIssuer([]byte("test-secret"), "ripple-backend", "ripple-clients", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	auth := services.NewAuthService(accounts, issuer, services.NewLockoutPolicy(5, 30*time.Minute), noopMailer{}, services.AuthConfig{
		BcryptCost: bcrypt.MinCost,
	})

	res, err := auth.Register(context.Background(), services.RegisterInput{
		Handle:   "alice",
		Email:    "alice@example.com",
		Password: "Passw0rd!",
	})
	require.NoError(t, err)
	return auth, accounts, res.AccessToken
}

func principalEcho(t *testing.T, got **Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAttachesPrincipal(t *testing.T) {
	auth, _, token := newAuthService(t)

	var got *Principal
	handler := RequireAuth(auth)(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Handle)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, models.RoleStandard, got.Role)
	require.NotNil(t, got.Account)
}

func TestRequireAuthRejects(t *testing.T) {
	auth, _, _ := newAuthService(t)

	var got *Principal
	handler := RequireAuth(auth)(principalEcho(t, &got))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer garbage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, got)
		})
	}
}

func TestRequireAuthDeactivatedAccount(t *testing.T) {
	auth, accounts, token := newAuthService(t)

	a, err := accounts.ByIdentifier(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, accounts.SetActive(context.Background(), a.ID, false))

	var got *Principal
	handler := RequireAuth(auth)(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, got)
}

func TestOptionalAuth(t *testing.T) {
	auth, _, token := newAuthService(t)

	var got *Principal
	handler := OptionalAuth(auth)(principalEcho(t, &got))

	// Anonymous passes through.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)

	// Bad token is ignored, not rejected.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)

	// Good token attaches the principal.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Handle)
}

func TestRequireRole(t *testing.T) {
	auth, accounts, token := newAuthService(t)

	var got *Principal
	handler := RequireAuth(auth)(RequireRole(models.RoleAdmin)(principalEcho(t, &got)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "standard accounts cannot reach admin routes")

	a, err := accounts.ByIdentifier(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, accounts.SetRole(context.Background(), a.ID, models.RoleAdmin))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, models.RoleAdmin, got.Role)
}

func TestRequireRoleWithoutPrincipal(t *testing.T) {
	handler := RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
