package store

import (
	"context"
	"errors"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement this. Sub-repositories keep concerns tidy and
// make transaction scoping explicit.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions
	BackupCodes() BackupCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise. Preferred over Tx for multi-step
	// operations that must be atomic (e.g. password reset fan-out).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetByID returns an account by id.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByEmail looks up by normalized email. Used on login and the
	// single-use token flows.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// Create inserts a new account (id provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, a domain.Account) error

	// RecordLoginSuccess clears the lockout state and stamps the login
	// audit fields in one statement.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time, ip string) error

	// RecordLoginFailure increments failed_login_attempts and, when the
	// new count reaches threshold, sets locked_until=at+lockFor. The
	// increment and the lock land in a single statement so a timed-out
	// call never half-applies. Returns the new count and lock expiry.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, at time.Time) (attempts int, lockedUntil *time.Time, err error)

	// SetEmailVerificationToken stores a fresh verification token + expiry.
	SetEmailVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error

	// MarkEmailVerified flips email_verified and clears the token fields.
	MarkEmailVerified(ctx context.Context, id string) error

	// SetPasswordResetToken stores a fresh reset token + expiry.
	SetPasswordResetToken(ctx context.Context, id, token string, expiresAt time.Time) error

	// CompletePasswordReset sets the new hash and clears the reset token
	// and lockout fields together.
	CompletePasswordReset(ctx context.Context, id, newHash string) error

	// UpdatePasswordHash sets only the password hash (authenticated change).
	UpdatePasswordHash(ctx context.Context, id, newHash string) error

	// SetTwoFactorSecret stores a pending TOTP secret without enabling.
	SetTwoFactorSecret(ctx context.Context, id, secret string) error

	// EnableTwoFactor marks two-factor active for the account.
	EnableTwoFactor(ctx context.Context, id string) error

	// DisableTwoFactor clears the secret and the enabled flag.
	DisableTwoFactor(ctx context.Context, id string) error

	// SetActive toggles the deactivation flag. Rows are never deleted.
	SetActive(ctx context.Context, id string, active bool) error

	// ClearExpiredTokens drops verification/reset tokens past their
	// expiry. Housekeeping only; the flows reject expired tokens in
	// application code regardless.
	ClearExpiredTokens(ctx context.Context, now time.Time) error
}

type Sessions interface {
	// Create stores a new session row at login.
	Create(ctx context.Context, s domain.Session) error

	// GetByRefreshHash returns the session holding the fingerprinted
	// refresh token, valid or not; validity is the caller's check.
	GetByRefreshHash(ctx context.Context, hash string) (domain.Session, error)

	// Rotate swaps the session's refresh hash, access jti and expiries,
	// conditioned on the session still being active AND still holding
	// oldHash. Returns ErrNotFound when the condition fails, which is how
	// exactly one of two racing refresh calls wins.
	Rotate(ctx context.Context, sessionID, oldHash, newHash, accessTokenID string, accessExpiresAt, expiresAt, at time.Time) error

	// Invalidate marks one session inactive (logout).
	Invalidate(ctx context.Context, sessionID string) error

	// InvalidateAllForAccount marks every session for the account
	// inactive (password reset boundary).
	InvalidateAllForAccount(ctx context.Context, accountID string) error

	// ListActiveForAccount returns the active, unexpired sessions so
	// their access jtis can be blacklisted on reset.
	ListActiveForAccount(ctx context.Context, accountID string, now time.Time) ([]domain.Session, error)

	// DeleteExpired removes long-dead session rows. Housekeeping.
	DeleteExpired(ctx context.Context, now time.Time) error
}

type BackupCodes interface {
	// Create stores one backup code fingerprint for an account.
	Create(ctx context.Context, accountID, codeHash string) error

	// Consume deletes the code if present and reports whether it existed.
	// Deletion-on-match makes each code single use.
	Consume(ctx context.Context, accountID, codeHash string) (bool, error)

	// DeleteAll removes every backup code for an account.
	DeleteAll(ctx context.Context, accountID string) error

	// Count returns how many unused codes remain.
	Count(ctx context.Context, accountID string) (int, error)
}
