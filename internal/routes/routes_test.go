package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ripplehq/ripple-backend/internal/handlers"
	"github.com/ripplehq/ripple-backend/internal/middleware"
	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
)

type quietMailer struct{}

func (quietMailer) IsEnabled() bool                                    { return true }
func (quietMailer) Send(context.Context, string, string, string) error { return nil }

// denyLimiter rejects everything so a 429 marks a route as rate limited.
type denyLimiter struct {
	calls int
}

func (l *denyLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (middleware.LimitResult, error) {
	l.calls++
	return middleware.LimitResult{Blocked: true, Limit: max, ResetAt: time.Now().Add(window)}, nil
}

func newRouter(t *testing.T, limiter middleware.Limiter) *chi.Mux {
	t.Helper()
	accounts := store.NewMemoryAccounts()

	issuer, err := services.NewTokenIssuer([]byte("test-secret"), "ripple-backend", "ripple-clients", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	auth := services.NewAuthService(accounts, issuer, services.NewLockoutPolicy(5, 30*time.Minute), quietMailer{}, services.AuthConfig{
		BcryptCost: bcrypt.MinCost,
	})

	h := handlers.New(auth, nil, nil, accounts)
	r := chi.NewRouter()
	Setup(r, h, middleware.RequireAuth(auth), limiter)
	return r
}

func TestCredentialRoutesAreRateLimited(t *testing.T) {
	limiter := &denyLimiter{}
	router := newRouter(t, limiter)

	limited := []string{
		"/api/auth/signup",
		"/api/auth/signin",
		"/api/auth/refresh",
		"/api/auth/verify/request",
		"/api/auth/reset/request",
		"/api/auth/reset/confirm",
	}
	for _, path := range limited {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		req.RemoteAddr = "203.0.113.7:51234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, path)
	}
	assert.Equal(t, len(limited), limiter.calls)

	// Token-redemption and logout endpoints stay outside the tighter
	// window so a throttled client can still end sessions.
	for _, path := range []string{"/api/auth/logout", "/api/auth/verify/confirm"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		req.RemoteAddr = "203.0.113.7:51234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code, path)
	}
}

func TestHealthRoute(t *testing.T) {
	router := newRouter(t, &denyLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}