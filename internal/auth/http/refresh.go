package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// RefreshHandler handles POST /v1/auth/refresh.
type RefreshHandler struct {
	Sessions *service.SessionService
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ServeHTTP godoc
//
//	@Summary		Rotate a refresh token
//	@Description	Exchanges a live refresh token for a fresh access/refresh pair.
//	@Description	The presented token is consumed: replaying it fails, and the
//	@Description	access token it was paired with is revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		refreshRequest	true	"Refresh token"
//	@Success		200		{object}	httpx.Envelope	"New token pair"
//	@Failure		401		{object}	httpx.Envelope	"Invalid, expired, revoked or already-used token"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	pair, err := h.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteData(w, http.StatusOK, pair)
}
