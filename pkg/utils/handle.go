package utils

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	MinHandleLength = 3
	MaxHandleLength = 30
)

var (
	handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateHandle validates handle format.
// Rules: 3-30 characters, letters, numbers, underscores only.
func ValidateHandle(handle string) error {
	handle = strings.TrimSpace(handle)

	if len(handle) < MinHandleLength {
		return &ValidationError{Field: "handle", Message: "Handle must be at least 3 characters"}
	}

	if len(handle) > MaxHandleLength {
		return &ValidationError{Field: "handle", Message: "Handle must be at most 30 characters"}
	}

	if !handleRegex.MatchString(handle) {
		return &ValidationError{Field: "handle", Message: "Handle can only contain letters, numbers, and underscores"}
	}

	// Check if it starts with a letter or number (not underscore)
	if !(unicode.IsLetter(rune(handle[0])) || unicode.IsNumber(rune(handle[0]))) {
		return &ValidationError{Field: "handle", Message: "Handle must start with a letter or number"}
	}

	return nil
}

// ValidateEmail checks the basic shape of an email address.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return &ValidationError{Field: "email", Message: "Email address is not valid"}
	}
	return nil
}

// NormalizeEmail lowercases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeHandle strips surrounding whitespace so the stored handle is the
// same value the format rules were checked against.
func NormalizeHandle(handle string) string {
	return strings.TrimSpace(handle)
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
