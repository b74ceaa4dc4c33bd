package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// VerifyEmailHandler handles POST /v1/auth/verify-email.
type VerifyEmailHandler struct {
	Sessions *service.SessionService
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// ServeHTTP godoc
//
//	@Summary		Verify an email address
//	@Description	Consumes the verification token sent at registration and marks
//	@Description	the account's email as verified.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifyEmailRequest	true	"Verification token"
//	@Success		200		{object}	httpx.Envelope		"Email verified"
//	@Failure		400		{object}	httpx.Envelope		"Invalid or expired token"
//	@Router			/v1/auth/verify-email [post].
func (h *VerifyEmailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Verification token is required")
		return
	}

	if err := h.Sessions.VerifyEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Email verified")
}
