package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

const (
	// DefaultVerifyTokenTTL bounds email-verification tokens.
	DefaultVerifyTokenTTL = 24 * time.Hour
	// DefaultResetTokenTTL bounds password-reset tokens.
	DefaultResetTokenTTL = time.Hour

	oneTimeTokenBytes = 32
)

// newOneTimeToken generates a single-use token: the cleartext goes to the
// caller exactly once, only the digest is ever persisted. The token carries
// enough entropy that an unsalted SHA-256 digest is irreversible in practice.
func newOneTimeToken() (cleartext, digest string, err error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	cleartext = hex.EncodeToString(buf)
	return cleartext, digestOneTimeToken(cleartext), nil
}

func digestOneTimeToken(cleartext string) string {
	sum := sha256.Sum256([]byte(cleartext))
	return hex.EncodeToString(sum[:])
}

// oneTimeTokenMatches compares a stored digest to the digest of a supplied
// cleartext in constant time and checks the expiry against now.
func oneTimeTokenMatches(storedDigest string, expiry *time.Time, suppliedCleartext string, now time.Time) bool {
	if storedDigest == "" || expiry == nil || !expiry.After(now) {
		return false
	}
	supplied := digestOneTimeToken(suppliedCleartext)
	return subtle.ConstantTimeCompare([]byte(storedDigest), []byte(supplied)) == 1
}
