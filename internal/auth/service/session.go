package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/cache"
	"github.com/harborview-digital/showcase/internal/auth/domain"
	"github.com/harborview-digital/showcase/internal/auth/notify"
	"github.com/harborview-digital/showcase/internal/auth/store"
	"github.com/harborview-digital/showcase/pkg/cryptox"
	"github.com/harborview-digital/showcase/pkg/idx"
	"github.com/harborview-digital/showcase/pkg/slogx"
)

const (
	// storageOpTimeout bounds every storage round trip so a stalled
	// database fails a request instead of hanging it.
	storageOpTimeout = 5 * time.Second

	// Pre-hash throttle on login attempts per email+IP. Coarser than the
	// account lockout and purely advisory: the counter lives in the cache
	// and fails open when the cache is down.
	loginAttemptWindow = 15 * time.Minute
	loginAttemptLimit  = 20
)

// SessionService owns the account lifecycle: registration, login with
// lockout and two-factor, refresh rotation, logout, and the single-use
// email-verification and password-reset flows.
type SessionService struct {
	Store    store.Store
	Cache    cache.Cache
	Tokens   *TokenService
	Notifier notify.Notifier

	// now is swappable in tests.
	now func() time.Time
}

func NewSessionService(st store.Store, c cache.Cache, tokens *TokenService, n notify.Notifier) *SessionService {
	return &SessionService{
		Store:    st,
		Cache:    c,
		Tokens:   tokens,
		Notifier: n,
		now:      time.Now,
	}
}

func opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, storageOpTimeout)
}

// Register creates a new unverified account and kicks off email
// verification. The verification email is best effort: a delivery failure
// is logged but registration still succeeds.
func (s *SessionService) Register(ctx context.Context, email, password, firstName, lastName string) (domain.AccountView, error) {
	l := slogx.FromContext(ctx)
	now := s.now()
	email = domain.NormalizeEmail(email)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.AccountView{}, fmt.Errorf("hash password: %w", err)
	}

	token, tokenExpires, err := s.Tokens.IssueSingleUse(domain.TokenKindEmailVerification, email)
	if err != nil {
		return domain.AccountView{}, fmt.Errorf("issue verification token: %w", err)
	}
	tokenHash := cryptox.FingerprintToken(token)

	account := domain.Account{
		ID:                         idx.NewAt(now).String(),
		Email:                      email,
		PasswordHash:               hash,
		FirstName:                  firstName,
		LastName:                   lastName,
		Role:                       "user",
		EmailVerificationToken:     &tokenHash,
		EmailVerificationExpiresAt: &tokenExpires,
		IsActive:                   true,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	sctx, cancel := opCtx(ctx)
	defer cancel()
	if err := s.Store.Accounts().Create(sctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.AccountView{}, ErrDuplicateEmail
		}
		return domain.AccountView{}, storageErr("create account", err)
	}

	if err := s.Notifier.SendVerification(ctx, email, token); err != nil {
		l.Warn("verification email not sent", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	l.Info("account registered", slog.String("account_id", account.ID))
	return account.SafeView(), nil
}

// Login authenticates an email/password pair, enforcing lockout and
// two-factor policy. When two-factor is enabled and no code accompanies the
// request, the result signals the pending challenge instead of failing.
func (s *SessionService) Login(ctx context.Context, email, password, twoFactorCode string, rememberMe bool, device domain.DeviceInfo) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := s.now()
	email = domain.NormalizeEmail(email)

	if s.throttled(ctx, email, device.IP) {
		return domain.LoginResult{}, ErrTooManyAttempts
	}

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.Store.Accounts().GetByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown account reports the same failure as a wrong
			// password so callers cannot probe for registered emails.
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, storageErr("load account", err)
	}

	if account.IsLocked(now) {
		l.Info("login rejected, account locked", slog.String("account_id", account.ID))
		return domain.LoginResult{}, ErrAccountLocked
	}
	if !account.IsActive {
		return domain.LoginResult{}, ErrAccountDisabled
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		return domain.LoginResult{}, s.recordFailure(sctx, account, now)
	}

	if account.TwoFactorEnabled {
		if twoFactorCode == "" {
			return domain.LoginResult{TwoFactorRequired: true}, nil
		}
		ok, err := s.checkTwoFactorCode(sctx, account, twoFactorCode, now)
		if err != nil {
			return domain.LoginResult{}, err
		}
		if !ok {
			// A bad code counts toward lockout like a bad password:
			// both are guesses at the same gate. Only the plain
			// wrong-guess outcome is reworded; a tripped lockout or a
			// storage failure propagates as itself.
			if lockErr := s.recordFailure(sctx, account, now); !errors.Is(lockErr, ErrInvalidCredentials) {
				return domain.LoginResult{}, lockErr
			}
			return domain.LoginResult{}, ErrInvalidTwoFactorCode
		}
	}

	pair, err := s.Tokens.IssuePair(account.ID, account.Email, account.Role, "", rememberMe)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue token pair: %w", err)
	}

	session := domain.Session{
		ID:               pair.SessionID,
		AccountID:        account.ID,
		RefreshTokenHash: cryptox.FingerprintToken(pair.RefreshToken),
		AccessTokenID:    pair.AccessTokenID,
		AccessExpiresAt:  pair.AccessExpiresAt,
		IsActive:         true,
		ExpiresAt:        pair.RefreshExpiresAt,
		RememberMe:       rememberMe,
		Device:           device,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	// The session row and the lockout reset commit together; a failure on
	// either leaves no half-written session behind.
	err = s.Store.WithTx(sctx, func(tx store.Tx) error {
		if err := tx.Sessions().Create(sctx, session); err != nil {
			return err
		}
		return tx.Accounts().RecordLoginSuccess(sctx, account.ID, now, device.IP)
	})
	if err != nil {
		return domain.LoginResult{}, storageErr("create session", err)
	}
	account.LastLoginAt = &now
	account.FailedLoginAttempts = 0

	if err := s.Notifier.SendLoginAlert(ctx, account.Email, device.IP); err != nil {
		l.Warn("login alert not sent", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	l.Info("login succeeded",
		slog.String("account_id", account.ID),
		slog.String("session_id", session.ID),
		slog.String("device_type", device.Type),
	)

	view := account.SafeView()
	return domain.LoginResult{Pair: &pair, Account: &view}, nil
}

// Refresh rotates a refresh token for a new pair bound to the same session.
// Exactly one of two racing calls with the same token can win: the session
// update is conditioned on the stored refresh fingerprint, and the loser
// fails with SessionInvalid.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	claims, err := s.Tokens.Verify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}

	revoked, err := s.Cache.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Revocation checks fail closed: an unreachable cache denies.
		return domain.TokenPair{}, storageErr("revocation check", err)
	}
	if revoked {
		return domain.TokenPair{}, ErrTokenRevoked
	}

	sctx, cancel := opCtx(ctx)
	defer cancel()

	oldHash := cryptox.FingerprintToken(refreshToken)
	session, err := s.Store.Sessions().GetByRefreshHash(sctx, oldHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrSessionInvalid
		}
		return domain.TokenPair{}, storageErr("load session", err)
	}
	if !session.IsValid(now) {
		return domain.TokenPair{}, ErrSessionInvalid
	}

	account, err := s.Store.Accounts().GetByID(sctx, session.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrSessionInvalid
		}
		return domain.TokenPair{}, storageErr("load account", err)
	}
	if !account.IsActive {
		return domain.TokenPair{}, ErrAccountInactive
	}

	pair, err := s.Tokens.IssuePair(account.ID, account.Email, account.Role, session.ID, session.RememberMe)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	newHash := cryptox.FingerprintToken(pair.RefreshToken)
	err = s.Store.Sessions().Rotate(sctx, session.ID, oldHash, newHash, pair.AccessTokenID, pair.AccessExpiresAt, pair.RefreshExpiresAt, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Another rotation already consumed this refresh token.
			return domain.TokenPair{}, ErrSessionInvalid
		}
		return domain.TokenPair{}, storageErr("rotate session", err)
	}

	// The superseded access token dies with the rotation. Idempotent: a
	// double write for the same jti is harmless.
	s.revokeAccess(ctx, session.AccessTokenID, session.AccessExpiresAt, now)

	l.Info("session rotated", slog.String("session_id", session.ID))
	return pair, nil
}

// Logout invalidates the session behind a refresh token. Always reports
// success: an unparseable or unknown token reveals nothing to the caller,
// and logging out twice is fine.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	l := slogx.FromContext(ctx)
	now := s.now()

	if _, err := s.Tokens.Verify(refreshToken, domain.TokenKindRefresh); err != nil {
		return
	}

	sctx, cancel := opCtx(ctx)
	defer cancel()

	session, err := s.Store.Sessions().GetByRefreshHash(sctx, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		return
	}

	if err := s.Store.Sessions().Invalidate(sctx, session.ID); err != nil {
		l.Warn("logout could not invalidate session", slog.String("session_id", session.ID), slog.Any("error", err))
		return
	}
	s.revokeAccess(ctx, session.AccessTokenID, session.AccessExpiresAt, now)

	l.Info("logout", slog.String("session_id", session.ID))
}

// VerifyAccess validates a bearer access token for the request path: kind,
// signature, expiry, and the revocation blacklist. Pure policy checks come
// from the token service; the blacklist read fails closed.
func (s *SessionService) VerifyAccess(ctx context.Context, token string) (Claims, error) {
	claims, err := s.Tokens.Verify(token, domain.TokenKindAccess)
	if err != nil {
		return Claims{}, err
	}

	revoked, err := s.Cache.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, storageErr("revocation check", err)
	}
	if revoked {
		return Claims{}, ErrTokenRevoked
	}
	return claims, nil
}

// GetAccount returns the caller-safe view of an account.
func (s *SessionService) GetAccount(ctx context.Context, id string) (domain.AccountView, error) {
	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.Store.Accounts().GetByID(sctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AccountView{}, ErrInvalidCredentials
		}
		return domain.AccountView{}, storageErr("load account", err)
	}
	return account.SafeView(), nil
}

// recordFailure persists one failed attempt and reports the right policy
// error: AccountLocked when this attempt tripped the threshold, otherwise
// InvalidCredentials. The increment and the lock land in one statement so a
// timeout never half-applies them.
func (s *SessionService) recordFailure(ctx context.Context, account domain.Account, now time.Time) error {
	l := slogx.FromContext(ctx)

	attempts, lockedUntil, err := s.Store.Accounts().RecordLoginFailure(
		ctx, account.ID, domain.MaxFailedLogins, domain.LockoutDuration, now,
	)
	if err != nil {
		return storageErr("record login failure", err)
	}

	if lockedUntil != nil && lockedUntil.After(now) {
		l.Warn("account locked after repeated failures",
			slog.String("account_id", account.ID),
			slog.Int("attempts", attempts),
			slog.Time("locked_until", *lockedUntil),
		)
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// throttled applies the advisory fixed-window counter for login attempts.
// Cache trouble means allow: availability beats strict limiting here.
func (s *SessionService) throttled(ctx context.Context, email, ip string) bool {
	key := "login:" + email + ":" + ip
	count, err := s.Cache.CountAttempt(ctx, key, loginAttemptWindow)
	if err != nil {
		slogx.FromContext(ctx).Warn("attempt counter unavailable", slog.Any("error", err))
		return false
	}
	return count > loginAttemptLimit
}

// revokeAccess blacklists an access jti for exactly its remaining lifetime.
// Failures are logged, not returned: the write is idempotent and a missed
// blacklist entry expires on its own at the token's natural expiry.
func (s *SessionService) revokeAccess(ctx context.Context, jti string, expiresAt, now time.Time) {
	if jti == "" {
		return
	}
	if err := s.Cache.RevokeToken(ctx, jti, expiresAt.Sub(now)); err != nil {
		slogx.FromContext(ctx).Error("access token not blacklisted", slog.String("jti", jti), slog.Any("error", err))
	}
}
