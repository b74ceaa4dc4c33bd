package http

import (
	"encoding/json"
	"net/http"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// ChangePasswordHandler handles POST /v1/auth/change-password.
type ChangePasswordHandler struct {
	Sessions *service.SessionService
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ServeHTTP godoc
//
//	@Summary		Change the current password
//	@Description	Re-confirms the current password and replaces it. Existing
//	@Description	sessions stay valid; use a password reset to terminate them.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		changePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	httpx.Envelope			"Password changed"
//	@Failure		401		{object}	httpx.Envelope			"Wrong current password"
//	@Router			/v1/auth/change-password [post].
func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Current password is required")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	if err := h.Sessions.ChangePassword(r.Context(), id.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "Password has been changed")
}
