package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// TwoFactorHandler handles the authenticated 2FA management endpoints.
type TwoFactorHandler struct {
	Sessions *service.SessionService
}

type twoFactorPasswordRequest struct {
	Password string `json:"password"`
}

type twoFactorCodeRequest struct {
	Code string `json:"code"`
}

type twoFactorDisableRequest struct {
	Password string `json:"password,omitempty"`
	Code     string `json:"code,omitempty"`
}

// HandleStatus handles GET /v1/auth/2fa
//
//	@Summary		Two-factor status
//	@Description	Reports whether two-factor is enabled and how many backup codes
//	@Description	remain unused.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope	"Status and remaining backup codes"
//	@Router			/v1/auth/2fa [get].
func (h *TwoFactorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	status, err := h.Sessions.TwoFactorStatus(r.Context(), id.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteData(w, http.StatusOK, status)
}

// HandleSetup handles POST /v1/auth/2fa/setup
//
//	@Summary		Begin two-factor enrollment
//	@Description	Re-confirms the current password, then generates a TOTP secret
//	@Description	and otpauth URL for the authenticator app. Two-factor is not
//	@Description	active until the secret is confirmed via /2fa/verify.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		twoFactorPasswordRequest	true	"Current password"
//	@Success		200		{object}	httpx.Envelope				"Secret and otpauth URL"
//	@Failure		400		{object}	httpx.Envelope				"Already enabled"
//	@Failure		401		{object}	httpx.Envelope				"Wrong password"
//	@Router			/v1/auth/2fa/setup [post].
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req twoFactorPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Current password is required")
		return
	}

	setup, err := h.Sessions.SetupTwoFactor(r.Context(), id.AccountID, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteData(w, http.StatusOK, setup)
}

// HandleVerify handles POST /v1/auth/2fa/verify
//
//	@Summary		Confirm two-factor enrollment
//	@Description	Verifies a live code from the authenticator, enables two-factor,
//	@Description	and returns backup codes. The codes are shown exactly once.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		twoFactorCodeRequest	true	"Authenticator code"
//	@Success		200		{object}	httpx.Envelope			"Backup codes"
//	@Failure		401		{object}	httpx.Envelope			"Invalid code"
//	@Router			/v1/auth/2fa/verify [post].
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req twoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Authenticator code is required")
		return
	}

	codes, err := h.Sessions.VerifyTwoFactor(r.Context(), id.AccountID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteData(w, http.StatusOK, map[string][]string{"backupCodes": codes})
}

// HandleDisable handles POST /v1/auth/2fa/disable
//
//	@Summary		Disable two-factor authentication
//	@Description	Re-confirms with the current password or a live second-factor
//	@Description	code, then clears the shared secret and all backup codes.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		twoFactorDisableRequest	true	"Password or code"
//	@Success		200		{object}	httpx.Envelope			"Disabled"
//	@Failure		401		{object}	httpx.Envelope			"Wrong password or code"
//	@Router			/v1/auth/2fa/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req twoFactorDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Password == "" && req.Code == "") {
		httpx.WriteError(w, http.StatusBadRequest, "Current password or a second-factor code is required")
		return
	}

	if err := h.Sessions.DisableTwoFactor(r.Context(), id.AccountID, req.Password, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Two-factor authentication disabled")
}
