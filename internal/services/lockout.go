package services

import (
	"context"
	"time"

	"github.com/ripplehq/ripple-backend/internal/models"
	"github.com/ripplehq/ripple-backend/internal/store"
)

const (
	// DefaultMaxLoginAttempts locks an account after this many consecutive
	// failed logins.
	DefaultMaxLoginAttempts = 5
	// DefaultLockoutDuration is how long a lockout lasts.
	DefaultLockoutDuration = 30 * time.Minute
)

// LockoutPolicy tracks failed login attempts and temporarily locks accounts.
// State lives on the Account document; the policy only decides transitions
// and delegates the writes to the store's atomic update primitives.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration

	now func() time.Time
}

// NewLockoutPolicy returns a policy with the given limits. Non-positive
// values fall back to the defaults.
func NewLockoutPolicy(maxAttempts int, duration time.Duration) LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return LockoutPolicy{MaxAttempts: maxAttempts, Duration: duration, now: time.Now}
}

// WithClock overrides the policy's clock. Tests only.
func (p LockoutPolicy) WithClock(now func() time.Time) LockoutPolicy {
	p.now = now
	return p
}

// Now returns the policy's current wall-clock time.
func (p LockoutPolicy) Now() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// OnFailure applies the failed-match transition: an expired lock resets the
// counter to 1 and clears the lock; otherwise the counter increments and a
// lock is set when the post-increment count reaches MaxAttempts. Attempts
// against a currently-locked account go through here too, so probing while
// locked keeps extending the counter. Returns the lock expiry when this
// attempt left the account locked.
func (p LockoutPolicy) OnFailure(ctx context.Context, accounts store.Accounts, a *models.Account) (*time.Time, error) {
	now := p.Now()
	if a.LockedUntil != nil && !a.LockedUntil.After(now) {
		return nil, accounts.ResetFailedLogins(ctx, a.ID, 1)
	}
	until := now.Add(p.Duration)
	count, err := accounts.IncFailedLogins(ctx, a.ID, p.MaxAttempts, until)
	if err != nil {
		return nil, err
	}
	if count >= p.MaxAttempts {
		return &until, nil
	}
	return nil, nil
}

// OnSuccess applies the successful-match transition: clear the counter and
// any lock, then stamp last_login.
func (p LockoutPolicy) OnSuccess(ctx context.Context, accounts store.Accounts, a *models.Account) error {
	return accounts.RecordLoginSuccess(ctx, a.ID, p.Now())
}

// Locked evaluates the persisted lock-expiry against the wall clock.
func (p LockoutPolicy) Locked(a *models.Account) bool {
	return a.Locked(p.Now())
}
