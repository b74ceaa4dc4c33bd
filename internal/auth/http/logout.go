package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// LogoutHandler handles POST /v1/auth/logout.
type LogoutHandler struct {
	Sessions *service.SessionService
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ServeHTTP godoc
//
//	@Summary		Log out
//	@Description	Invalidates the session behind a refresh token. Always reports
//	@Description	success, even for unknown or malformed tokens.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		logoutRequest	true	"Refresh token"
//	@Success		200		{object}	httpx.Envelope	"Logged out"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	// Decode errors are deliberately ignored: logout never reveals
	// whether the caller held a valid token.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		h.Sessions.Logout(r.Context(), req.RefreshToken)
	}

	httpx.WriteMessage(w, http.StatusOK, "Logged out")
}
