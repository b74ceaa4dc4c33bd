package http

import (
	"context"

	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// Verifier adapts the session service's access-token check to the shape the
// authentication middleware expects.
type Verifier struct {
	Sessions *service.SessionService
}

func (v *Verifier) VerifyAccess(ctx context.Context, token string) (httpx.Identity, error) {
	claims, err := v.Sessions.VerifyAccess(ctx, token)
	if err != nil {
		return httpx.Identity{}, err
	}
	return httpx.Identity{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		TokenID:   claims.ID,
	}, nil
}
