package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ripplehq/ripple-backend/internal/models"
)

func testAccount() *models.Account {
	return &models.Account{
		ID:     primitive.NewObjectID(),
		Handle: "alice",
		Email:  "alice@example.com",
		Role:   models.RoleStandard,
		Active: true,
	}
}

func newTestIssuer(t *testing.T, now func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer([]byte("test-secret"), "ripple-backend", "ripple-clients", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	return issuer.WithClock(now)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer(nil, "iss", "aud", 0, 0)
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	a := testAccount()

	token, err := issuer.IssueAccess(a)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, a.ID.Hex(), claims.Subject)
	assert.Equal(t, "alice", claims.Handle)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "standard", claims.Role)
	assert.NotEmpty(t, claims.ID, "every token carries a unique jti")
}

func TestAccessTokenExpiry(t *testing.T) {
	now := time.Now()
	clock := &now
	issuer := newTestIssuer(t, func() time.Time { return *clock })

	token, err := issuer.IssueAccess(testAccount())
	require.NoError(t, err)

	later := now.Add(2 * time.Hour)
	clock = &later

	_, err = issuer.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	token, err := issuer.IssueAccess(testAccount())
	require.NoError(t, err)

	other, err := NewTokenIssuer([]byte("other-secret"), "ripple-backend", "ripple-clients", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	_, err = other.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestAccessTokenIssuerAudienceEnforced(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	token, err := issuer.IssueAccess(testAccount())
	require.NoError(t, err)

	wrongIssuer, err := NewTokenIssuer([]byte("test-secret"), "someone-else", "ripple-clients", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	_, err = wrongIssuer.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	wrongAudience, err := NewTokenIssuer([]byte("test-secret"), "ripple-backend", "other-clients", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	_, err = wrongAudience.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestAccessTokenMalformed(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.VerifyAccess(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, token)
	}
}

func TestNewRefreshTokenUnique(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec, err := issuer.NewRefreshToken()
		require.NoError(t, err)
		assert.False(t, seen[rec.Token], "refresh tokens must not repeat")
		seen[rec.Token] = true
		assert.True(t, rec.Valid(time.Now()))
	}
}

func TestRefreshTokenExpiry(t *testing.T) {
	issuer := newTestIssuer(t, time.Now)
	rec, err := issuer.NewRefreshToken()
	require.NoError(t, err)

	assert.True(t, rec.Valid(rec.ExpiresAt.Add(-time.Second)))
	assert.False(t, rec.Valid(rec.ExpiresAt))
	assert.False(t, rec.Valid(rec.ExpiresAt.Add(time.Second)))
}
