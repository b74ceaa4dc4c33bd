package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the auth services. Handlers map these onto
// HTTP statuses; anything not listed here is treated as an internal fault.
var (
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrAccountLocked         = errors.New("account_locked")
	ErrAccountDisabled       = errors.New("account_disabled")
	ErrAccountInactive       = errors.New("account_inactive")
	ErrDuplicateEmail        = errors.New("duplicate_email")
	ErrInvalidToken          = errors.New("invalid_token")
	ErrExpiredToken          = errors.New("expired_token")
	ErrWrongTokenKind        = errors.New("wrong_token_kind")
	ErrTokenRevoked          = errors.New("token_revoked")
	ErrSessionInvalid        = errors.New("session_invalid")
	ErrInvalidOrExpiredToken = errors.New("invalid_or_expired_token")
	ErrInvalidTwoFactorCode  = errors.New("invalid_two_factor_code")
	ErrTwoFactorNotEnabled   = errors.New("two_factor_not_enabled")
	ErrTwoFactorEnabled      = errors.New("two_factor_already_enabled")
	ErrTooManyAttempts       = errors.New("too_many_attempts")

	// ErrStorageUnavailable distinguishes infrastructure faults from policy
	// rejections. Callers must never collapse it into InvalidCredentials.
	ErrStorageUnavailable = errors.New("storage_unavailable")
)

// storageErr wraps a store failure so callers can match ErrStorageUnavailable
// while logs keep the underlying cause.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
