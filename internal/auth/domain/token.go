package domain

import "time"

// TokenKind is the type discriminator embedded in every token. A token
// presented where a different kind is expected is always rejected.
type TokenKind string

const (
	TokenKindAccess            TokenKind = "access"
	TokenKindRefresh           TokenKind = "refresh"
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindPasswordReset     TokenKind = "password_reset"
)

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	SessionID        string    `json:"-"`
	AccessTokenID    string    `json:"-"` // jti
}

// LoginResult distinguishes a completed login from a pending two-factor
// challenge. TwoFactorRequired true means no tokens were issued and the
// caller should prompt for a code.
type LoginResult struct {
	TwoFactorRequired bool         `json:"twoFactorRequired"`
	Pair              *TokenPair   `json:"tokens,omitempty"`
	Account           *AccountView `json:"account,omitempty"`
}

// TwoFactorSetup is returned by two-factor enrollment; the secret and
// otpauth URL are shown once and never persisted in plaintext elsewhere.
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// TwoFactorStatus summarizes an account's second-factor state, including
// how many single-use backup codes are still unspent.
type TwoFactorStatus struct {
	Enabled              bool `json:"enabled"`
	BackupCodesRemaining int  `json:"backupCodesRemaining"`
}
