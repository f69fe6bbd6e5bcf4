package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level of a user account.
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

// ValidSignupRole reports whether r may be chosen at signup.
// Admin accounts are never self-service.
func ValidSignupRole(r Role) bool {
	return r == RoleReader || r == RoleWriter
}

// User represents an account in the system
type User struct {
	ID                 uuid.UUID
	Email              string
	Name               string
	Role               Role
	PasswordHash       []byte
	Verified           bool
	VerifiedAt         *time.Time
	FailedLogins       int
	LockedUntil        *time.Time
	NeedsRoleSelection bool
	WalletAddress      *string
	LastLoginAt        *time.Time
	CreatedAt          time.Time
}

// Locked reports whether the account is locked out at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// OTPCode represents an outstanding email verification code. At most one
// record per user is considered active at verification time; issuing a new
// code supersedes any prior record.
type OTPCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CodeHash  []byte
	Attempts  int
	RequestIP *string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code is past its TTL at the given instant.
func (c *OTPCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
