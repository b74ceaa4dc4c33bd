package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// ForgotPasswordHandler handles POST /v1/auth/forgot-password.
type ForgotPasswordHandler struct {
	Sessions *service.SessionService
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ServeHTTP godoc
//
//	@Summary		Request a password reset
//	@Description	Sends a reset link when the email belongs to an active account.
//	@Description	The response is identical either way, so the endpoint cannot be
//	@Description	used to probe for registered addresses.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		forgotPasswordRequest	true	"Email address"
//	@Success		200		{object}	httpx.Envelope			"Generic acknowledgement"
//	@Router			/v1/auth/forgot-password [post].
func (h *ForgotPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validEmail(req.Email) {
		httpx.WriteError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}

	if err := h.Sessions.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "If that email is registered, a reset link has been sent")
}

// ResetPasswordHandler handles POST /v1/auth/reset-password.
type ResetPasswordHandler struct {
	Sessions *service.SessionService
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ServeHTTP godoc
//
//	@Summary		Complete a password reset
//	@Description	Consumes a reset token, sets the new password, and terminates
//	@Description	every session the account had.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		resetPasswordRequest	true	"Reset token and new password"
//	@Success		200		{object}	httpx.Envelope			"Password changed"
//	@Failure		400		{object}	httpx.Envelope			"Invalid or expired token"
//	@Router			/v1/auth/reset-password [post].
func (h *ResetPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Reset token is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	if err := h.Sessions.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Password has been reset")
}
