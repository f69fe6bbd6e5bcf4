package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for the account lifecycle. Handlers map these to HTTP
// status codes; messages stay generic so callers cannot distinguish the
// expired/absent/exhausted OTP cases or probe for accounts at sign-in.
var (
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("account not found")
	ErrOTPInvalid         = errors.New("invalid verification code")
	ErrOTPExpired         = errors.New("verification code expired or not found")
	ErrOTPLocked          = errors.New("too many incorrect attempts, request a new code")
)

// ValidationError carries the per-rule messages for malformed input.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// LockedError reports a temporarily locked account and when it unlocks.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}
