package http

import (
	"errors"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
	"github.com/harborview-digital/showcase/pkg/slogx"
)

// writeServiceError maps a service failure onto the response envelope.
// Policy failures become client-safe messages that never reveal which check
// failed; anything else is a 500 with the detail kept in the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrAccountLocked):
		httpx.WriteError(w, http.StatusForbidden, "Account temporarily locked. Try again later")
	case errors.Is(err, service.ErrAccountDisabled), errors.Is(err, service.ErrAccountInactive):
		httpx.WriteError(w, http.StatusForbidden, "Account is not active")
	case errors.Is(err, service.ErrDuplicateEmail):
		httpx.WriteError(w, http.StatusConflict, "An account with this email already exists")
	case errors.Is(err, service.ErrInvalidTwoFactorCode):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid two-factor code")
	case errors.Is(err, service.ErrTwoFactorEnabled):
		httpx.WriteError(w, http.StatusBadRequest, "Two-factor authentication is already enabled")
	case errors.Is(err, service.ErrTwoFactorNotEnabled):
		httpx.WriteError(w, http.StatusBadRequest, "Two-factor authentication is not enabled")
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrExpiredToken),
		errors.Is(err, service.ErrWrongTokenKind),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrSessionInvalid):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired token")
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusTooManyRequests, "Too many attempts. Try again later")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Something went wrong")
	}
}
