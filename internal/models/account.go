package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStandard  Role = "standard"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleStandard, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// RefreshTokenRecord is a server-side record of one issued refresh token.
// It is owned exclusively by its Account and is not addressable outside it.
type RefreshTokenRecord struct {
	ID        string    `bson:"id" json:"-"`
	Token     string    `bson:"token" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"-"`
	ExpiresAt time.Time `bson:"expires_at" json:"-"`
}

// Valid reports whether the record has not expired at the given time.
func (r RefreshTokenRecord) Valid(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// Account is the persisted identity record: credentials, role, flags, and
// the security counters the login path maintains.
type Account struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Handle       string `bson:"handle" json:"handle"`
	Email        string `bson:"email" json:"email"`
	PasswordHash string `bson:"password_hash" json:"-"` // Never serialized

	Role          Role `bson:"role" json:"role"`
	Active        bool `bson:"active" json:"active"`
	EmailVerified bool `bson:"email_verified" json:"email_verified"`

	DisplayName string `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Bio         string `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarURL   string `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	FailedLoginAttempts int        `bson:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `bson:"locked_until,omitempty" json:"-"`
	LastLogin           *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`

	VerifyTokenDigest string     `bson:"verify_token_digest,omitempty" json:"-"`
	VerifyTokenExpiry *time.Time `bson:"verify_token_expiry,omitempty" json:"-"`
	ResetTokenDigest  string     `bson:"reset_token_digest,omitempty" json:"-"`
	ResetTokenExpiry  *time.Time `bson:"reset_token_expiry,omitempty" json:"-"`

	RefreshTokens []RefreshTokenRecord `bson:"refresh_tokens" json:"-"`
}

// Locked is derived: true iff locked_until is set and still in the future.
// Callers pass wall-clock time at evaluation, not a cached snapshot.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// FindRefreshToken returns the record holding the exact token value.
func (a *Account) FindRefreshToken(token string) (RefreshTokenRecord, bool) {
	for _, rec := range a.RefreshTokens {
		if rec.Token == token {
			return rec, true
		}
	}
	return RefreshTokenRecord{}, false
}

// Public returns the caller-facing view with secret fields stripped.
func (a *Account) Public() map[string]interface{} {
	pub := map[string]interface{}{
		"id":             a.ID.Hex(),
		"handle":         a.Handle,
		"email":          a.Email,
		"role":           string(a.Role),
		"active":         a.Active,
		"email_verified": a.EmailVerified,
		"created_at":     a.CreatedAt,
	}
	if a.DisplayName != "" {
		pub["display_name"] = a.DisplayName
	}
	if a.Bio != "" {
		pub["bio"] = a.Bio
	}
	if a.AvatarURL != "" {
		pub["avatar_url"] = a.AvatarURL
	}
	if a.LastLogin != nil {
		pub["last_login"] = *a.LastLogin
	}
	return pub
}

// Profile returns the view shown to other users: no email, no flags.
func (a *Account) Profile() map[string]interface{} {
	pub := map[string]interface{}{
		"id":         a.ID.Hex(),
		"handle":     a.Handle,
		"created_at": a.CreatedAt,
	}
	if a.DisplayName != "" {
		pub["display_name"] = a.DisplayName
	}
	if a.Bio != "" {
		pub["bio"] = a.Bio
	}
	if a.AvatarURL != "" {
		pub["avatar_url"] = a.AvatarURL
	}
	return pub
}
