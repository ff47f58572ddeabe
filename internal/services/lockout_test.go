package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplehq/ripple-backend/internal/models"
	"github.com/ripplehq/ripple-backend/internal/store"
)

func seedAccount(t *testing.T, accounts *store.MemoryAccounts) *models.Account {
	t.Helper()
	a := &models.Account{
		Handle: "alice",
		Email:  "alice@example.com",
		Role:   models.RoleStandard,
		Active: true,
	}
	require.NoError(t, accounts.Insert(context.Background(), a))
	return a
}

func reload(t *testing.T, accounts *store.MemoryAccounts, a *models.Account) *models.Account {
	t.Helper()
	got, err := accounts.ByID(context.Background(), a.ID)
	require.NoError(t, err)
	return got
}

func TestLockoutCountsUpToThreshold(t *testing.T) {
	ctx := context.Background()
	accounts := store.NewMemoryAccounts()
	a := seedAccount(t, accounts)

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	policy := NewLockoutPolicy(5, 30*time.Minute).WithClock(func() time.Time { return now })

	for i := 1; i <= 4; i++ {
		until, err := policy.OnFailure(ctx, accounts, reload(t, accounts, a))
		require.NoError(t, err)
		assert.Nil(t, until, "attempt %d must not lock", i)

		got := reload(t, accounts, a)
		assert.Equal(t, i, got.FailedLoginAttempts)
		assert.False(t, policy.Locked(got))
	}

	until, err := policy.OnFailure(ctx, accounts, reload(t, accounts, a))
	require.NoError(t, err)
	require.NotNil(t, until, "fifth failure locks the account")
	assert.Equal(t, now.Add(30*time.Minute), *until)

	got := reload(t, accounts, a)
	assert.True(t, policy.Locked(got))
	assert.Equal(t, 5, got.FailedLoginAttempts)
}

func TestLockoutFailuresWhileLockedKeepCounting(t *testing.T) {
	ctx := context.Background()
	accounts := store.NewMemoryAccounts()
	a := seedAccount(t, accounts)

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	policy := NewLockoutPolicy(5, 30*time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		_, err := policy.OnFailure(ctx, accounts, reload(t, accounts, a))
		require.NoError(t, err)
	}

	until, err := policy.OnFailure(ctx, accounts, reload(t, accounts, a))
	require.NoError(t, err)
	require.NotNil(t, until)
	assert.Equal(t, 6, reload(t, accounts, a).FailedLoginAttempts)
}

func TestLockoutExpiredLockResetsToOne(t *testing.T) {
	ctx := context.Background()
	accounts := store.NewMemoryAccounts()
	a := seedAccount(t, accounts)

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	policy := NewLockoutPolicy(5, 30*time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		_, err := policy.OnFailure(ctx, accounts, reload(t, accounts, a))
		require.NoError(t, err)
	}
	require.True(t, policy.Locked(reload(t, accounts, a)))

	// Past the lock expiry a failed attempt starts a fresh window at 1.
	now = now.Add(31 * time.Minute)
	until, err := policy.OnFailure(ctx, accounts, reload(t, accounts, a))
	require.NoError(t, err)
	assert.Nil(t, until)

	got := reload(t, accounts, a)
	assert.Equal(t, 1, got.FailedLoginAttempts)
	assert.Nil(t, got.LockedUntil)
	assert.False(t, policy.Locked(got))
}

func TestLockoutOnSuccessClearsState(t *testing.T) {
	ctx := context.Background()
	accounts := store.NewMemoryAccounts()
	a := seedAccount(t, accounts)

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	policy := NewLockoutPolicy(5, 30*time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		_, err := policy.OnFailure(ctx, accounts, reload(t, accounts, a))
		require.NoError(t, err)
	}

	require.NoError(t, policy.OnSuccess(ctx, accounts, reload(t, accounts, a)))

	got := reload(t, accounts, a)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.Nil(t, got.LockedUntil)
	require.NotNil(t, got.LastLogin)
	assert.Equal(t, now, *got.LastLogin)
}

func TestLockoutDefaults(t *testing.T) {
	policy := NewLockoutPolicy(0, 0)
	assert.Equal(t, DefaultMaxLoginAttempts, policy.MaxAttempts)
	assert.Equal(t, DefaultLockoutDuration, policy.Duration)
}
