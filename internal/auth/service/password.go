package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/domain"
	"github.com/harborview-digital/showcase/internal/auth/store"
	"github.com/harborview-digital/showcase/pkg/cryptox"
	"github.com/harborview-digital/showcase/pkg/slogx"
)

// ForgotPassword starts the reset flow. It never reports whether the email
// belongs to an account: the caller sees the same success either way, and
// only an existing active account actually receives a token.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.Store.Accounts().GetByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset requested for unknown email")
			return nil
		}
		return storageErr("load account", err)
	}
	if !account.IsActive {
		l.Info("password reset requested for inactive account", slog.String("account_id", account.ID))
		return nil
	}

	token, expiresAt, err := s.Tokens.IssueSingleUse(domain.TokenKindPasswordReset, email)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.Store.Accounts().SetPasswordResetToken(sctx, account.ID, cryptox.FingerprintToken(token), expiresAt); err != nil {
		return storageErr("store reset token", err)
	}

	if err := s.Notifier.SendPasswordReset(ctx, email, token); err != nil {
		l.Warn("reset email not sent", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	l.Info("password reset issued", slog.String("account_id", account.ID))
	return nil
}

// ResetPassword completes the reset flow. The presented token must match
// the fingerprint stored on the account and still be inside its window; a
// token that was already consumed, superseded, or expired is rejected. On
// success every session for the account dies and every outstanding access
// token is blacklisted.
func (s *SessionService) ResetPassword(ctx context.Context, token, newPassword string) error {
	l := slogx.FromContext(ctx)
	now := s.now()

	claims, err := s.Tokens.VerifySingleUse(token, domain.TokenKindPasswordReset)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.Store.Accounts().GetByEmail(sctx, claims.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return storageErr("load account", err)
	}
	if !s.singleUseMatches(account.PasswordResetToken, account.PasswordResetExpiresAt, token, now) {
		return ErrInvalidOrExpiredToken
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var stale []domain.Session
	err = s.Store.WithTx(sctx, func(tx store.Tx) error {
		var err error
		stale, err = tx.Sessions().ListActiveForAccount(sctx, account.ID, now)
		if err != nil {
			return err
		}
		if err := tx.Accounts().CompletePasswordReset(sctx, account.ID, hash); err != nil {
			return err
		}
		return tx.Sessions().InvalidateAllForAccount(sctx, account.ID)
	})
	if err != nil {
		return storageErr("complete password reset", err)
	}

	// Blacklist the access tokens the dead sessions were paired with so
	// they stop working before their natural expiry.
	for _, sess := range stale {
		s.revokeAccess(ctx, sess.AccessTokenID, sess.AccessExpiresAt, now)
	}

	if err := s.Notifier.SendPasswordChanged(ctx, account.Email); err != nil {
		l.Warn("password changed email not sent", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	l.Info("password reset completed",
		slog.String("account_id", account.ID),
		slog.Int("sessions_invalidated", len(stale)),
	)
	return nil
}

// ChangePassword rehashes the password for an authenticated account after
// re-confirming the current one. Unlike a reset, the caller holds a live
// session, so existing sessions survive the change.
func (s *SessionService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	l := slogx.FromContext(ctx)

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.loadAccount(sctx, accountID)
	if err != nil {
		return err
	}
	if err := cryptox.VerifyPassword(currentPassword, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Accounts().UpdatePasswordHash(sctx, account.ID, hash); err != nil {
		return storageErr("update password hash", err)
	}

	if err := s.Notifier.SendPasswordChanged(ctx, account.Email); err != nil {
		l.Warn("password changed email not sent", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	l.Info("password changed", slog.String("account_id", account.ID))
	return nil
}

// ResendVerification issues a fresh verification token, superseding any
// earlier one. Like ForgotPassword it never reveals whether the email is
// registered; unknown, inactive, and already-verified accounts all see the
// same silent success.
func (s *SessionService) ResendVerification(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.Store.Accounts().GetByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("verification resend requested for unknown email")
			return nil
		}
		return storageErr("load account", err)
	}
	if !account.IsActive || account.EmailVerified {
		return nil
	}

	token, expiresAt, err := s.Tokens.IssueSingleUse(domain.TokenKindEmailVerification, email)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	if err := s.Store.Accounts().SetEmailVerificationToken(sctx, account.ID, cryptox.FingerprintToken(token), expiresAt); err != nil {
		return storageErr("store verification token", err)
	}

	if err := s.Notifier.SendVerification(ctx, email, token); err != nil {
		l.Warn("verification email not sent", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	l.Info("verification reissued", slog.String("account_id", account.ID))
	return nil
}

// VerifyEmail consumes an email-verification token and marks the account
// verified. Token mismatch, reuse, and expiry all report the same error.
func (s *SessionService) VerifyEmail(ctx context.Context, token string) error {
	l := slogx.FromContext(ctx)
	now := s.now()

	claims, err := s.Tokens.VerifySingleUse(token, domain.TokenKindEmailVerification)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.Store.Accounts().GetByEmail(sctx, claims.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return storageErr("load account", err)
	}
	if !s.singleUseMatches(account.EmailVerificationToken, account.EmailVerificationExpiresAt, token, now) {
		return ErrInvalidOrExpiredToken
	}

	if err := s.Store.Accounts().MarkEmailVerified(sctx, account.ID); err != nil {
		return storageErr("mark email verified", err)
	}

	l.Info("email verified", slog.String("account_id", account.ID))
	return nil
}

// singleUseMatches checks a presented single-use token against the
// fingerprint and expiry stored on the account. Expiry is enforced here in
// application code as well as inside the JWT so a clock-skewed signer can
// never extend the stored window.
func (s *SessionService) singleUseMatches(storedHash *string, expiresAt *time.Time, token string, now time.Time) bool {
	if storedHash == nil || expiresAt == nil {
		return false
	}
	if !expiresAt.After(now) {
		return false
	}
	return *storedHash == cryptox.FingerprintToken(token)
}
