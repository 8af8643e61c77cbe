package securestore

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	passwordSpecials  = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"
)

var ErrWeakPassword = errors.New("weak wallet password")

// ValidatePassword applies the provisioning policy for new wallet passwords.
// Unlocking never applies it: any string is just a candidate password there.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password is required", ErrWeakPassword)
	}
	n := len([]rune(password))
	if n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("%w: must be between %d and %d characters", ErrWeakPassword, MinPasswordLength, MaxPasswordLength)
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	switch {
	case !lower:
		return fmt.Errorf("%w: must contain a lowercase letter", ErrWeakPassword)
	case !upper:
		return fmt.Errorf("%w: must contain an uppercase letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: must contain a number", ErrWeakPassword)
	case !special:
		return fmt.Errorf("%w: must contain a special character", ErrWeakPassword)
	}
	return nil
}
