// Package validate checks username and password formats before they reach
// the database.
package validate

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Validation errors. Callers match them with errors.Is.
var (
	ErrInvalidUsername = errors.New("invalid username format")
	ErrInvalidPassword = errors.New("invalid password format")
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32

	MinPasswordLength = 6
	// bcrypt ignores everything after 72 bytes.
	MaxPasswordLength = 72
)

// Username validates a username.
//
// Validation rules:
//   - length between MinUsernameLength and MaxUsernameLength characters
//   - only ASCII letters, digits, '_', '-' and '.'
//   - must not start with '.' or '-'
func Username(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidUsername, MinUsernameLength, MaxUsernameLength)
	}

	if username[0] == '.' || username[0] == '-' {
		return fmt.Errorf("%w: must not start with %q", ErrInvalidUsername, username[0])
	}

	for _, r := range username {
		if !isUsernameRune(r) {
			return fmt.Errorf("%w: character %q is not allowed", ErrInvalidUsername, r)
		}
	}

	return nil
}

// Password validates a password. Length is measured in bytes since that is
// what bcrypt consumes.
func Password(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: must not exceed %d bytes", ErrInvalidPassword, MaxPasswordLength)
	}
	return nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	default:
		return false
	}
}
