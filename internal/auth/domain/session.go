package domain

import "time"

// DeviceInfo is advisory context captured at login from the User-Agent and
// remote address. Best effort only; never used for authorization.
type DeviceInfo struct {
	Type    string `json:"type"` // desktop, mobile, tablet, bot, unknown
	Browser string `json:"browser"`
	OS      string `json:"os"`
	IP      string `json:"ip"`
}

// Session pairs one refresh token with one account. An account may hold many
// sessions (multi-device). The refresh token itself is stored only as a
// SHA-256 fingerprint; the row also tracks the jti and expiry of the access
// token currently paired with it so revocation TTLs can be exact.
type Session struct {
	ID        string
	AccountID string

	RefreshTokenHash string // unique
	AccessTokenID    string // jti of the currently paired access token
	AccessExpiresAt  time.Time

	IsActive  bool
	ExpiresAt time.Time

	// RememberMe preserves the extended refresh lifetime the user chose at
	// login, so rotation keeps minting 30-day refresh tokens instead of
	// silently shrinking the window to the default.
	RememberMe bool

	Device DeviceInfo

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValid reports whether the session can still mint token pairs at now.
func (s Session) IsValid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
