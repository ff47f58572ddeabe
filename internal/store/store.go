// Package store holds the persistence contract for accounts. The store is a
// dumb document store: all business rules (lockout transitions, token
// rotation, digest lifecycles) live in the service layer, and the store only
// exposes lookups plus the atomic field updates the services need.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ripplehq/ripple-backend/internal/models"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateHandle is returned by Insert when the handle is taken.
	ErrDuplicateHandle = errors.New("handle already taken")
	// ErrDuplicateEmail is returned by Insert when the email is registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// TokenKind selects which one-time token digest pair an update targets.
type TokenKind string

const (
	TokenVerification TokenKind = "verification"
	TokenReset        TokenKind = "reset"
)

// Accounts is the credential-store contract. Implementations must enforce
// unique handle/email on Insert and perform the counter updates atomically
// at the store (no client-side read-modify-write).
type Accounts interface {
	Insert(ctx context.Context, a *models.Account) error
	ByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	// ByIdentifier resolves a handle (exact) or an email (lowercased).
	ByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	ByVerificationDigest(ctx context.Context, digest string) (*models.Account, error)
	ByResetDigest(ctx context.Context, digest string) (*models.Account, error)
	ByRefreshToken(ctx context.Context, token string) (*models.Account, error)

	// UpdateProfile persists display name, bio, and avatar URL.
	UpdateProfile(ctx context.Context, id primitive.ObjectID, displayName, bio, avatarURL string) error
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error

	// IncFailedLogins atomically increments the failed-login counter and,
	// when the post-increment count reaches threshold, sets locked_until in
	// the same logical update. Returns the post-increment count.
	IncFailedLogins(ctx context.Context, id primitive.ObjectID, threshold int, lockUntil time.Time) (int, error)
	// ResetFailedLogins sets the counter to the given value and clears any lock.
	ResetFailedLogins(ctx context.Context, id primitive.ObjectID, to int) error
	// RecordLoginSuccess zeroes the counter, clears the lock, and stamps last_login.
	RecordLoginSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) error

	// PushRefreshToken appends a record, keeping only the newest
	// MaxRefreshTokens records.
	PushRefreshToken(ctx context.Context, id primitive.ObjectID, rec models.RefreshTokenRecord) error
	// PullRefreshToken removes the record with the exact token value.
	PullRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	ClearRefreshTokens(ctx context.Context, id primitive.ObjectID) error
	// PruneRefreshTokens removes records whose expiry is at or before now.
	PruneRefreshTokens(ctx context.Context, id primitive.ObjectID, now time.Time) error

	SetTokenDigest(ctx context.Context, id primitive.ObjectID, kind TokenKind, digest string, expiry time.Time) error
	ClearTokenDigest(ctx context.Context, id primitive.ObjectID, kind TokenKind) error
	// SetEmailVerified marks the email verified and clears the verification
	// digest pair in one update.
	SetEmailVerified(ctx context.Context, id primitive.ObjectID) error

	Count(ctx context.Context) (int64, error)
}

// MaxRefreshTokens bounds the refresh-token collection per account; the
// oldest records are dropped first.
const MaxRefreshTokens = 10
