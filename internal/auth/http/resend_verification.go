package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// ResendVerificationHandler handles POST /v1/auth/resend-verification.
type ResendVerificationHandler struct {
	Sessions *service.SessionService
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

// ServeHTTP godoc
//
//	@Summary		Resend the verification email
//	@Description	Issues a fresh verification token when the email belongs to an
//	@Description	unverified account. The response is identical either way, so the
//	@Description	endpoint cannot be used to probe for registered addresses.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		resendVerificationRequest	true	"Email address"
//	@Success		200		{object}	httpx.Envelope				"Generic acknowledgement"
//	@Router			/v1/auth/resend-verification [post].
func (h *ResendVerificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validEmail(req.Email) {
		httpx.WriteError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}

	if err := h.Sessions.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "If that email needs verification, a new link has been sent")
}
