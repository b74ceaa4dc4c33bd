package http

import (
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// MeHandler handles GET /v1/auth/me.
type MeHandler struct {
	Sessions *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		Current account
//	@Description	Returns the authenticated account with all secret and token
//	@Description	fields stripped.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope	"Account"
//	@Failure		401	{object}	httpx.Envelope	"Invalid or missing access token"
//	@Router			/v1/auth/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	view, err := h.Sessions.GetAccount(r.Context(), id.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteData(w, http.StatusOK, view)
}
