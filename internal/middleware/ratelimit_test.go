package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stubLimiter returns canned results so the middleware can be tested
// without Redis.
type stubLimiter struct {
	result LimitResult
	err    error
	keys   []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (LimitResult, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return LimitResult{Allowed: true}, s.err
	}
	return s.result, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAllowsAndSetsHeaders(t *testing.T) {
	reset := time.Now().Add(RateLimitWindow)
	limiter := &stubLimiter{result: LimitResult{
		Allowed:   true,
		Limit:     100,
		Remaining: 99,
		ResetAt:   reset,
	}}
	handler := RateLimit(limiter, 100, RateLimitWindow)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, []string{"203.0.113.7"}, limiter.keys, "counter is keyed by client IP")
}

func TestRateLimitBlocks(t *testing.T) {
	limiter := &stubLimiter{result: LimitResult{Blocked: true, Limit: 100}}
	handler := RateLimit(limiter, 100, RateLimitWindow)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), "retry_after")
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis: connection refused")}
	handler := RateLimit(limiter, 100, RateLimitWindow)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code, "limiter outages must not take the API down")
}
