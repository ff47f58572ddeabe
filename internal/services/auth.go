package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ripplehq/ripple-backend/internal/models"
	"github.com/ripplehq/ripple-backend/internal/store"
	"github.com/ripplehq/ripple-backend/pkg/utils"
)

const minPasswordLength = 8

// AuthService composes the credential store, password hasher, token issuer,
// lockout policy, and mailer into the register/login/logout/refresh flows.
type AuthService struct {
	accounts store.Accounts
	issuer   *TokenIssuer
	lockout  LockoutPolicy
	mailer   Mailer

	bcryptCost  int
	verifyTTL   time.Duration
	resetTTL    time.Duration
	frontendURL string

	now func() time.Time
}

// AuthConfig carries the tunables for NewAuthService. Zero values fall back
// to the package defaults.
type AuthConfig struct {
	BcryptCost  int
	VerifyTTL   time.Duration
	ResetTTL    time.Duration
	FrontendURL string
}

// NewAuthService wires the authentication gateway.
func NewAuthService(accounts store.Accounts, issuer *TokenIssuer, lockout LockoutPolicy, mailer Mailer, cfg AuthConfig) *AuthService {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = utils.DefaultBcryptCost
	}
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = DefaultVerifyTokenTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTokenTTL
	}
	return &AuthService{
		accounts:    accounts,
		issuer:      issuer,
		lockout:     lockout,
		mailer:      mailer,
		bcryptCost:  cfg.BcryptCost,
		verifyTTL:   cfg.VerifyTTL,
		resetTTL:    cfg.ResetTTL,
		frontendURL: cfg.FrontendURL,
		now:         lockout.Now,
	}
}

// RegisterInput is the registration request after transport decoding.
type RegisterInput struct {
	Handle      string
	Email       string
	Password    string
	DisplayName string
}

// RegisterResult is returned on successful registration.
type RegisterResult struct {
	Account      *models.Account
	AccessToken  string
	RefreshToken string

	// VerificationSent is false when delivery failed; the token fields were
	// rolled back and verification can be re-requested later.
	VerificationSent bool
}

// Register creates an unverified, active account and attempts to deliver a
// verification email. Duplicate handle and duplicate email are distinct
// errors. A failed delivery does not fail the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	handle := utils.NormalizeHandle(in.Handle)
	if err := utils.ValidateHandle(handle); err != nil {
		return nil, err
	}
	if err := utils.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, &utils.ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a := &models.Account{
		CreatedAt:    now,
		UpdatedAt:    now,
		Handle:       handle,
		Email:        utils.NormalizeEmail(in.Email),
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Role:         models.RoleStandard,
		Active:       true,
	}
	if err := s.accounts.Insert(ctx, a); err != nil {
		return nil, err
	}

	sent := s.issueVerification(ctx, a) == nil

	access, refresh, err := s.issueTokenPair(ctx, a)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{
		Account:          a,
		AccessToken:      access,
		RefreshToken:     refresh,
		VerificationSent: sent,
	}, nil
}

// LoginResult is returned on successful login or refresh.
type LoginResult struct {
	Account      *models.Account
	AccessToken  string
	RefreshToken string
}

// Login runs the credential-submission state machine: resolve the account,
// consult the lockout policy before any password comparison, verify the
// password, and on success mint a fresh token pair.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	a, err := s.accounts.ByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if s.lockout.Locked(a) {
		// Deliberate: attempts against a locked account still count, so an
		// attacker cannot probe for free while the window is open.
		until, err := s.lockout.OnFailure(ctx, s.accounts, a)
		if err != nil {
			return nil, err
		}
		if until == nil {
			until = a.LockedUntil
		}
		return nil, &LockedError{Until: *until}
	}

	if !utils.VerifyPassword(password, a.PasswordHash) {
		lockedUntil, err := s.lockout.OnFailure(ctx, s.accounts, a)
		if err != nil {
			return nil, err
		}
		if lockedUntil != nil {
			return nil, &LockedError{Until: *lockedUntil}
		}
		return nil, ErrInvalidCredentials
	}

	if !a.Active {
		return nil, ErrAccountInactive
	}

	if err := s.lockout.OnSuccess(ctx, s.accounts, a); err != nil {
		return nil, err
	}
	if err := s.accounts.PruneRefreshTokens(ctx, a.ID, s.now()); err != nil {
		return nil, err
	}

	access, refresh, err := s.issueTokenPair(ctx, a)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
	a.LastLogin = &now

	return &LoginResult{Account: a, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh redeems a refresh token, rotating on use: the consumed record is
// deleted before the replacement pair is issued, so a stolen, already-used
// token is permanently invalid.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	a, err := s.accounts.ByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	rec, ok := a.FindRefreshToken(refreshToken)
	if !ok {
		return nil, ErrRefreshInvalid
	}
	now := s.now()
	if !rec.Valid(now) {
		_ = s.accounts.PullRefreshToken(ctx, a.ID, refreshToken)
		return nil, ErrRefreshInvalid
	}
	if !a.Active {
		return nil, ErrAccountInactive
	}

	if err := s.accounts.PullRefreshToken(ctx, a.ID, refreshToken); err != nil {
		return nil, err
	}
	if err := s.accounts.PruneRefreshTokens(ctx, a.ID, now); err != nil {
		return nil, err
	}

	access, refresh, err := s.issueTokenPair(ctx, a)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Account: a, AccessToken: access, RefreshToken: refresh}, nil
}

// Logout removes the one refresh-token record matching the given value.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	a, err := s.accounts.ByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Already gone; logout is idempotent.
			return nil
		}
		return err
	}
	return s.accounts.PullRefreshToken(ctx, a.ID, refreshToken)
}

// LogoutAll clears every refresh token for the account, forcing a new login
// on every device.
func (s *AuthService) LogoutAll(ctx context.Context, accountID primitive.ObjectID) error {
	return s.accounts.ClearRefreshTokens(ctx, accountID)
}

// Authenticate verifies an access token and resolves its subject against
// the store. A valid token whose subject no longer exists surfaces as
// ErrUnknownSubject, distinct from expiry and malformation.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.Account, *AccessClaims, error) {
	claims, err := s.issuer.VerifyAccess(accessToken)
	if err != nil {
		return nil, nil, err
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, nil, ErrTokenInvalid
	}
	a, err := s.accounts.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUnknownSubject
		}
		return nil, nil, err
	}
	if !a.Active {
		return nil, nil, ErrAccountInactive
	}
	return a, claims, nil
}

// RequestVerification issues a fresh verification token for the account
// registered under email and attempts delivery. Unknown and already
// verified addresses succeed silently so the endpoint does not confirm
// which emails exist.
func (s *AuthService) RequestVerification(ctx context.Context, email string) error {
	a, err := s.accounts.ByIdentifier(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if a.EmailVerified {
		return nil
	}
	return s.issueVerification(ctx, a)
}

// ConfirmVerification consumes a verification token: digest the supplied
// cleartext, match it against the stored digest, check the expiry, then mark
// the email verified. Consumption clears the digest so replay fails.
func (s *AuthService) ConfirmVerification(ctx context.Context, cleartext string) error {
	a, err := s.accounts.ByVerificationDigest(ctx, digestOneTimeToken(cleartext))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChallengeInvalid
		}
		return err
	}
	if !oneTimeTokenMatches(a.VerifyTokenDigest, a.VerifyTokenExpiry, cleartext, s.now()) {
		return ErrChallengeInvalid
	}
	return s.accounts.SetEmailVerified(ctx, a.ID)
}

// RequestReset issues a password-reset token and attempts delivery. Unknown
// addresses succeed silently.
func (s *AuthService) RequestReset(ctx context.Context, email string) error {
	a, err := s.accounts.ByIdentifier(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	cleartext, digest, err := newOneTimeToken()
	if err != nil {
		return err
	}
	expiry := s.now().Add(s.resetTTL)
	if err := s.accounts.SetTokenDigest(ctx, a.ID, store.TokenReset, digest, expiry); err != nil {
		return err
	}

	body := fmt.Sprintf(resetEmailBody, a.Handle, s.frontendURL, cleartext)
	if err := s.mailer.Send(ctx, a.Email, resetEmailSubject, body); err != nil {
		// Roll back so no dangling digest outlives a failed delivery.
		if clearErr := s.accounts.ClearTokenDigest(ctx, a.ID, store.TokenReset); clearErr != nil {
			log.Printf("reset rollback failed for %s: %v", a.ID.Hex(), clearErr)
		}
		return err
	}
	return nil
}

// ConfirmReset consumes a reset token and installs the new password. Every
// refresh token is invalidated, forcing re-authentication on all devices,
// and the lockout state is cleared.
func (s *AuthService) ConfirmReset(ctx context.Context, cleartext, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return &utils.ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}

	a, err := s.accounts.ByResetDigest(ctx, digestOneTimeToken(cleartext))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChallengeInvalid
		}
		return err
	}
	if !oneTimeTokenMatches(a.ResetTokenDigest, a.ResetTokenExpiry, cleartext, s.now()) {
		return ErrChallengeInvalid
	}

	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.accounts.SetPasswordHash(ctx, a.ID, hash); err != nil {
		return err
	}
	if err := s.accounts.ClearTokenDigest(ctx, a.ID, store.TokenReset); err != nil {
		return err
	}
	if err := s.accounts.ClearRefreshTokens(ctx, a.ID); err != nil {
		return err
	}
	return s.accounts.ResetFailedLogins(ctx, a.ID, 0)
}

// ChangePassword updates the password for a signed-in account after
// re-verifying the current one, then logs out every device.
func (s *AuthService) ChangePassword(ctx context.Context, accountID primitive.ObjectID, current, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return &utils.ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}

	a, err := s.accounts.ByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownSubject
		}
		return err
	}
	if !utils.VerifyPassword(current, a.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.accounts.SetPasswordHash(ctx, a.ID, hash); err != nil {
		return err
	}
	return s.accounts.ClearRefreshTokens(ctx, a.ID)
}

// issueVerification sets the verification digest pair, then attempts
// delivery. The fields are rolled back when delivery fails, so verification
// stays re-requestable instead of the whole operation failing.
func (s *AuthService) issueVerification(ctx context.Context, a *models.Account) error {
	cleartext, digest, err := newOneTimeToken()
	if err != nil {
		return err
	}
	expiry := s.now().Add(s.verifyTTL)
	if err := s.accounts.SetTokenDigest(ctx, a.ID, store.TokenVerification, digest, expiry); err != nil {
		return err
	}

	body := fmt.Sprintf(verifyEmailBody, a.Handle, s.frontendURL, cleartext)
	if err := s.mailer.Send(ctx, a.Email, verifyEmailSubject, body); err != nil {
		if clearErr := s.accounts.ClearTokenDigest(ctx, a.ID, store.TokenVerification); clearErr != nil {
			log.Printf("verification rollback failed for %s: %v", a.ID.Hex(), clearErr)
		}
		return err
	}
	return nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, a *models.Account) (access, refresh string, err error) {
	rec, err := s.issuer.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.accounts.PushRefreshToken(ctx, a.ID, rec); err != nil {
		return "", "", err
	}
	access, err = s.issuer.IssueAccess(a)
	if err != nil {
		return "", "", err
	}
	return access, rec.Token, nil
}

const (
	verifyEmailSubject = "Verify your Ripple email"
	verifyEmailBody    = `<p>Hi @%s,</p>
<p>Confirm your email address to finish setting up your Ripple account:</p>
<p><a href="%s/verify-email?token=%s">Verify email</a></p>
<p>If you did not create this account, you can ignore this message.</p>`

	resetEmailSubject = "Reset your Ripple password"
	resetEmailBody    = `<p>Hi @%s,</p>
<p>Someone requested a password reset for your Ripple account. The link below
is valid for a limited time and can be used once:</p>
<p><a href="%s/reset-password?token=%s">Reset password</a></p>
<p>If this wasn't you, no action is needed.</p>`
)
