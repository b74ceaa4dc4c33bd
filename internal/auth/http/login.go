package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/device"
	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// LoginHandler handles POST /v1/auth/login.
type LoginHandler struct {
	Sessions *service.SessionService
}

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"`
	RememberMe    bool   `json:"rememberMe,omitempty"`
}

// ServeHTTP godoc
//
//	@Summary		Log in
//	@Description	Authenticates an email/password pair, optionally with a two-factor
//	@Description	code, and returns an access/refresh token pair bound to a new session.
//	@Description	When two-factor is enabled and no code is supplied, the response
//	@Description	carries twoFactorRequired instead of tokens.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	httpx.Envelope	"Tokens + account, or two-factor challenge"
//	@Failure		401		{object}	httpx.Envelope	"Invalid credentials or two-factor code"
//	@Failure		403		{object}	httpx.Envelope	"Account locked or disabled"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.Sessions.Login(r.Context(), req.Email, req.Password, req.TwoFactorCode, req.RememberMe, device.FromRequest(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteData(w, http.StatusOK, result)
}
