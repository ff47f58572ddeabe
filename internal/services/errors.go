package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUserNotFound is returned when no account matches the login identifier.
	ErrUserNotFound = errors.New("no such account")
	// ErrAccountLocked is returned while an account's lockout window is open.
	// The concrete error is a *LockedError carrying the remaining duration.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials is returned on a failed password match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for deactivated accounts.
	ErrAccountInactive = errors.New("account inactive")

	// ErrTokenExpired is returned for a well-formed but expired access token.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens, invalid signatures,
	// and issuer/audience mismatches.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrUnknownSubject is returned when a valid token names an account the
	// store no longer holds.
	ErrUnknownSubject = errors.New("unknown token subject")

	// ErrRefreshInvalid is returned when a refresh token does not match a
	// non-expired stored record. A rotated-away token lands here too.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrChallengeInvalid is returned when a verification or reset token is
	// wrong, expired, or already consumed.
	ErrChallengeInvalid = errors.New("invalid or expired token")

	// ErrMailUnavailable is returned when mail delivery failed or timed out.
	// It is transient and never corrupts account state.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
)

// LockedError wraps ErrAccountLocked with the remaining lockout duration so
// the caller knows when a retry is worthwhile.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// Remaining returns the lockout time left at now, floored at zero.
func (e *LockedError) Remaining(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
