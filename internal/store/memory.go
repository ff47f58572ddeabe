package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ripplehq/ripple-backend/internal/models"
)

// MemoryAccounts implements Accounts in memory for development and testing.
type MemoryAccounts struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]*models.Account
}

// Ensure the interface is met.
var _ Accounts = (*MemoryAccounts)(nil)

// NewMemoryAccounts creates an empty in-memory account store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[primitive.ObjectID]*models.Account)}
}

func copyAccount(a *models.Account) *models.Account {
	cp := *a
	cp.RefreshTokens = append([]models.RefreshTokenRecord(nil), a.RefreshTokens...)
	return &cp
}

func (s *MemoryAccounts) Insert(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Handle == a.Handle {
			return ErrDuplicateHandle
		}
		if existing.Email == a.Email {
			return ErrDuplicateEmail
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	s.accounts[a.ID] = copyAccount(a)
	return nil
}

func (s *MemoryAccounts) find(match func(*models.Account) bool) (*models.Account, error) {
	for _, a := range s.accounts {
		if match(a) {
			return copyAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryAccounts) ByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *MemoryAccounts) ByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(identifier))
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *models.Account) bool {
		return a.Handle == identifier || a.Email == email
	})
}

func (s *MemoryAccounts) ByVerificationDigest(ctx context.Context, digest string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *models.Account) bool {
		return a.VerifyTokenDigest != "" && a.VerifyTokenDigest == digest
	})
}

func (s *MemoryAccounts) ByResetDigest(ctx context.Context, digest string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *models.Account) bool {
		return a.ResetTokenDigest != "" && a.ResetTokenDigest == digest
	})
}

func (s *MemoryAccounts) ByRefreshToken(ctx context.Context, token string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *models.Account) bool {
		_, ok := a.FindRefreshToken(token)
		return ok
	})
}

func (s *MemoryAccounts) mutate(id primitive.ObjectID, fn func(*models.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	fn(a)
	return nil
}

func (s *MemoryAccounts) UpdateProfile(ctx context.Context, id primitive.ObjectID, displayName, bio, avatarURL string) error {
	return s.mutate(id, func(a *models.Account) {
		a.DisplayName = displayName
		a.Bio = bio
		a.AvatarURL = avatarURL
		a.UpdatedAt = time.Now()
	})
}

func (s *MemoryAccounts) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.mutate(id, func(a *models.Account) {
		a.PasswordHash = hash
		a.UpdatedAt = time.Now()
	})
}

func (s *MemoryAccounts) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	return s.mutate(id, func(a *models.Account) {
		a.Active = active
		a.UpdatedAt = time.Now()
	})
}

func (s *MemoryAccounts) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	return s.mutate(id, func(a *models.Account) {
		a.Role = role
		a.UpdatedAt = time.Now()
	})
}

func (s *MemoryAccounts) IncFailedLogins(ctx context.Context, id primitive.ObjectID, threshold int, lockUntil time.Time) (int, error) {
	var count int
	err := s.mutate(id, func(a *models.Account) {
		a.FailedLoginAttempts++
		count = a.FailedLoginAttempts
		if threshold > 0 && count >= threshold {
			until := lockUntil
			a.LockedUntil = &until
		}
	})
	return count, err
}

func (s *MemoryAccounts) ResetFailedLogins(ctx context.Context, id primitive.ObjectID, to int) error {
	return s.mutate(id, func(a *models.Account) {
		a.FailedLoginAttempts = to
		a.LockedUntil = nil
	})
}

func (s *MemoryAccounts) RecordLoginSuccess(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return s.mutate(id, func(a *models.Account) {
		a.FailedLoginAttempts = 0
		a.LockedUntil = nil
		stamp := at
		a.LastLogin = &stamp
	})
}

func (s *MemoryAccounts) PushRefreshToken(ctx context.Context, id primitive.ObjectID, rec models.RefreshTokenRecord) error {
	return s.mutate(id, func(a *models.Account) {
		a.RefreshTokens = append(a.RefreshTokens, rec)
		if len(a.RefreshTokens) > MaxRefreshTokens {
			a.RefreshTokens = a.RefreshTokens[len(a.RefreshTokens)-MaxRefreshTokens:]
		}
	})
}

func (s *MemoryAccounts) PullRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return s.mutate(id, func(a *models.Account) {
		kept := a.RefreshTokens[:0]
		for _, rec := range a.RefreshTokens {
			if rec.Token != token {
				kept = append(kept, rec)
			}
		}
		a.RefreshTokens = kept
	})
}

func (s *MemoryAccounts) ClearRefreshTokens(ctx context.Context, id primitive.ObjectID) error {
	return s.mutate(id, func(a *models.Account) {
		a.RefreshTokens = nil
	})
}

func (s *MemoryAccounts) PruneRefreshTokens(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	return s.mutate(id, func(a *models.Account) {
		kept := a.RefreshTokens[:0]
		for _, rec := range a.RefreshTokens {
			if rec.Valid(now) {
				kept = append(kept, rec)
			}
		}
		a.RefreshTokens = kept
	})
}

func (s *MemoryAccounts) SetTokenDigest(ctx context.Context, id primitive.ObjectID, kind TokenKind, digest string, expiry time.Time) error {
	return s.mutate(id, func(a *models.Account) {
		exp := expiry
		if kind == TokenReset {
			a.ResetTokenDigest = digest
			a.ResetTokenExpiry = &exp
		} else {
			a.VerifyTokenDigest = digest
			a.VerifyTokenExpiry = &exp
		}
	})
}

func (s *MemoryAccounts) ClearTokenDigest(ctx context.Context, id primitive.ObjectID, kind TokenKind) error {
	return s.mutate(id, func(a *models.Account) {
		if kind == TokenReset {
			a.ResetTokenDigest = ""
			a.ResetTokenExpiry = nil
		} else {
			a.VerifyTokenDigest = ""
			a.VerifyTokenExpiry = nil
		}
	})
}

func (s *MemoryAccounts) SetEmailVerified(ctx context.Context, id primitive.ObjectID) error {
	return s.mutate(id, func(a *models.Account) {
		a.EmailVerified = true
		a.VerifyTokenDigest = ""
		a.VerifyTokenExpiry = nil
		a.UpdatedAt = time.Now()
	})
}

func (s *MemoryAccounts) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.accounts)), nil
}
