package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/harborview-digital/showcase/internal/auth/domain"
	"github.com/harborview-digital/showcase/internal/auth/store"
	"github.com/harborview-digital/showcase/pkg/cryptox"
	"github.com/harborview-digital/showcase/pkg/slogx"
)

const (
	backupCodeCount = 10
	backupCodeBytes = cryptox.TokenSize128

	// totpSkew accepts codes up to two 30s steps either side of now to
	// absorb client clock drift.
	totpSkew = 2

	// TOTPIssuer is the label shown in authenticator apps.
	TOTPIssuer = "Showcase"
)

// SetupTwoFactor begins two-factor enrollment. The caller must re-confirm
// their current password; a session alone is not enough to change the
// second factor. The returned secret is pending until VerifyTwoFactor
// confirms the authenticator produces matching codes.
func (s *SessionService) SetupTwoFactor(ctx context.Context, accountID, password string) (domain.TwoFactorSetup, error) {
	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.loadAccount(sctx, accountID)
	if err != nil {
		return domain.TwoFactorSetup{}, err
	}
	if account.TwoFactorEnabled {
		return domain.TwoFactorSetup{}, ErrTwoFactorEnabled
	}
	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		return domain.TwoFactorSetup{}, ErrInvalidCredentials
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: account.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("generate totp key: %w", err)
	}

	if err := s.Store.Accounts().SetTwoFactorSecret(sctx, account.ID, key.Secret()); err != nil {
		return domain.TwoFactorSetup{}, storageErr("store totp secret", err)
	}

	slogx.FromContext(ctx).Info("two-factor enrollment started", slog.String("account_id", account.ID))
	return domain.TwoFactorSetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// VerifyTwoFactor confirms the pending secret with a live code, enables
// two-factor, and returns freshly minted backup codes. The plaintext codes
// are shown exactly once; only fingerprints are stored.
func (s *SessionService) VerifyTwoFactor(ctx context.Context, accountID, code string) ([]string, error) {
	now := s.now()

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.loadAccount(sctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}
	if account.TwoFactorSecret == nil || *account.TwoFactorSecret == "" {
		return nil, ErrTwoFactorNotEnabled
	}

	if !validTOTP(code, *account.TwoFactorSecret, now) {
		return nil, ErrInvalidTwoFactorCode
	}

	codes := make([]string, backupCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = c
	}

	err = s.Store.WithTx(sctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAll(sctx, account.ID); err != nil {
			return err
		}
		for _, c := range codes {
			if err := tx.BackupCodes().Create(sctx, account.ID, cryptox.FingerprintToken(c)); err != nil {
				return err
			}
		}
		return tx.Accounts().EnableTwoFactor(sctx, account.ID)
	})
	if err != nil {
		return nil, storageErr("enable two-factor", err)
	}

	slogx.FromContext(ctx).Info("two-factor enabled", slog.String("account_id", account.ID))
	return codes, nil
}

// DisableTwoFactor turns two-factor off and clears the secret and all
// backup codes. The caller re-confirms with either their password or a live
// second-factor code; a bare session is not enough.
func (s *SessionService) DisableTwoFactor(ctx context.Context, accountID, password, code string) error {
	now := s.now()

	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.loadAccount(sctx, accountID)
	if err != nil {
		return err
	}
	if !account.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	confirmed := false
	if password != "" && cryptox.VerifyPassword(password, account.PasswordHash) == nil {
		confirmed = true
	}
	if !confirmed && code != "" {
		ok, err := s.checkTwoFactorCode(sctx, account, code, now)
		if err != nil {
			return err
		}
		confirmed = ok
	}
	if !confirmed {
		return ErrInvalidCredentials
	}

	err = s.Store.WithTx(sctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAll(sctx, account.ID); err != nil {
			return err
		}
		return tx.Accounts().DisableTwoFactor(sctx, account.ID)
	})
	if err != nil {
		return storageErr("disable two-factor", err)
	}

	slogx.FromContext(ctx).Info("two-factor disabled", slog.String("account_id", account.ID))
	return nil
}

// TwoFactorStatus reports whether two-factor is on and how many backup
// codes remain, so clients can nudge users running low.
func (s *SessionService) TwoFactorStatus(ctx context.Context, accountID string) (domain.TwoFactorStatus, error) {
	sctx, cancel := opCtx(ctx)
	defer cancel()

	account, err := s.loadAccount(sctx, accountID)
	if err != nil {
		return domain.TwoFactorStatus{}, err
	}
	if !account.TwoFactorEnabled {
		return domain.TwoFactorStatus{}, nil
	}

	remaining, err := s.Store.BackupCodes().Count(sctx, account.ID)
	if err != nil {
		return domain.TwoFactorStatus{}, storageErr("count backup codes", err)
	}
	return domain.TwoFactorStatus{Enabled: true, BackupCodesRemaining: remaining}, nil
}

// checkTwoFactorCode validates a login-time second factor: first as a TOTP
// code against the stored secret, then as a single-use backup code.
func (s *SessionService) checkTwoFactorCode(ctx context.Context, account domain.Account, code string, now time.Time) (bool, error) {
	if account.TwoFactorSecret == nil || *account.TwoFactorSecret == "" {
		return false, ErrTwoFactorNotEnabled
	}

	if validTOTP(code, *account.TwoFactorSecret, now) {
		return true, nil
	}

	used, err := s.Store.BackupCodes().Consume(ctx, account.ID, cryptox.FingerprintToken(code))
	if err != nil {
		return false, storageErr("consume backup code", err)
	}
	if used {
		slogx.FromContext(ctx).Info("backup code consumed", slog.String("account_id", account.ID))
	}
	return used, nil
}

func (s *SessionService) loadAccount(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, storageErr("load account", err)
	}
	return account, nil
}

func validTOTP(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
