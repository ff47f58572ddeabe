package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ripplehq/ripple-backend/internal/models"
)

const (
	// DefaultAccessTokenTTL is deliberately long; mobile clients stay signed
	// in between releases. Tunable via ACCESS_TOKEN_TTL.
	DefaultAccessTokenTTL = 30 * 24 * time.Hour
	// DefaultRefreshTokenTTL bounds how long a device can stay silent before
	// a password is required again.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 32
)

// AccessClaims are the registered claims plus the account fields downstream
// handlers need without a store round trip.
type AccessClaims struct {
	Email  string `json:"email"`
	Handle string `json:"handle"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints signed access tokens and opaque refresh tokens, and
// validates access tokens against the configured issuer and audience.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

// NewTokenIssuer creates an issuer signing with the given HS256 secret.
// Non-positive TTLs fall back to the defaults.
func NewTokenIssuer(secret []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token issuer requires a signing secret")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{
		secret:     secret,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the issuer's clock. Tests only.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// IssueAccess mints a signed access token for the account.
func (t *TokenIssuer) IssueAccess(a *models.Account) (string, error) {
	now := t.now()
	claims := AccessClaims{
		Email:  a.Email,
		Handle: a.Handle,
		Role:   string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID.Hex(),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// VerifyAccess parses and validates an access token. Expiry surfaces as
// ErrTokenExpired; everything else wrong with the token (malformed, bad
// signature, issuer or audience mismatch) surfaces as ErrTokenInvalid.
func (t *TokenIssuer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(tok *jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// NewRefreshToken generates an opaque refresh-token record from a
// cryptographically secure random source. The value is not decodable; it is
// only meaningful as an exact match against the stored record.
func (t *TokenIssuer) NewRefreshToken() (models.RefreshTokenRecord, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return models.RefreshTokenRecord{}, err
	}
	now := t.now()
	return models.RefreshTokenRecord{
		ID:        uuid.NewString(),
		Token:     base64.URLEncoding.EncodeToString(buf),
		CreatedAt: now,
		ExpiresAt: now.Add(t.refreshTTL),
	}, nil
}
