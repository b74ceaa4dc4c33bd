package http

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

const minPasswordLength = 8

// RegisterHandler handles POST /v1/auth/register.
type RegisterHandler struct {
	Sessions *service.SessionService
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ServeHTTP godoc
//
//	@Summary		Register a new account
//	@Description	Creates an unverified account and emails a verification link.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Account details"
//	@Success		201		{object}	httpx.Envelope	"Created account"
//	@Failure		400		{object}	httpx.Envelope	"Malformed or invalid input"
//	@Failure		409		{object}	httpx.Envelope	"Email already registered"
//	@Router			/v1/auth/register [post].
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg, ok := validateRegistration(req); !ok {
		httpx.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	view, err := h.Sessions.Register(r.Context(), req.Email, req.Password, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteData(w, http.StatusCreated, view)
}

func validateRegistration(req registerRequest) (string, bool) {
	if !validEmail(req.Email) {
		return "A valid email address is required", false
	}
	if len(req.Password) < minPasswordLength {
		return "Password must be at least 8 characters", false
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return "First and last name are required", false
	}
	return "", true
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
