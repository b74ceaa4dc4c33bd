package domain

import (
	"strings"
	"time"
)

// Lockout policy: MaxFailedLogins consecutive failures lock the account for
// LockoutDuration. The counter resets on any successful login.
const (
	MaxFailedLogins = 5
	LockoutDuration = 30 * time.Minute
)

// Account is the durable credential record for one platform user. Passwords
// exist here only as argon2id hashes; callers hand plaintext to
// cryptox.HashPassword and persist the result, never the input.
type Account struct {
	ID           string
	Email        string // normalized, unique
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string // user, editor, admin, super_admin

	EmailVerified              bool
	EmailVerificationToken     *string
	EmailVerificationExpiresAt *time.Time

	PasswordResetToken     *string
	PasswordResetExpiresAt *time.Time

	FailedLoginAttempts int
	LockedUntil         *time.Time

	TwoFactorEnabled bool
	TwoFactorSecret  *string // TOTP secret, base32; present only when enabled or pending setup

	// Deactivation is a flag, never a row removal.
	IsActive bool

	LastLoginAt *time.Time
	LastLoginIP string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsLocked reports whether the account is under a login lockout at now.
func (a Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// NormalizeEmail folds an address into the canonical stored form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountView is the caller-facing projection of an Account with every
// secret and token field stripped.
type AccountView struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Role             string     `json:"role"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// SafeView projects the account for external callers.
func (a Account) SafeView() AccountView {
	return AccountView{
		ID:               a.ID,
		Email:            a.Email,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Role:             a.Role,
		EmailVerified:    a.EmailVerified,
		TwoFactorEnabled: a.TwoFactorEnabled,
		LastLoginAt:      a.LastLoginAt,
		CreatedAt:        a.CreatedAt,
	}
}
