package unlock

import (
	"errors"
	"fmt"
	"time"

	"walletguard/go-backend/internal/securestore"
)

var (
	ErrMissingConfig   = errors.New("wallet key or address is not configured")
	ErrLockedOut       = errors.New("too many wrong passwords, wallet access is locked")
	ErrPromptCancelled = errors.New("password prompt cancelled")
	ErrAddressMismatch = errors.New("decrypted key does not belong to the wallet address")
	ErrDecryptFailed   = securestore.ErrDecryptFailed
	ErrSessionClosed   = errors.New("unlock session is closed")
)

// LockoutError reports an active cooldown. It matches ErrLockedOut with errors.Is.
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("%s until %s", ErrLockedOut, e.Until.UTC().Format(time.RFC3339))
}

func (e *LockoutError) Unwrap() error {
	return ErrLockedOut
}

// countsAsFailedAttempt reports whether err is a wrong guess for lockout purposes.
func countsAsFailedAttempt(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrAddressMismatch)
}
