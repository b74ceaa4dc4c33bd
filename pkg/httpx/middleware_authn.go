package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/harborview-digital/showcase/pkg/slogx"
)

// AccessVerifier checks a bearer access token (signature, expiry, kind and
// revocation state) and returns the identity it carries.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (Identity, error)
}

// AuthnMiddleware authenticates requests via the Authorization header and
// injects the resulting Identity into the request context.
func AuthnMiddleware(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			id, err := v.VerifyAccess(ctx, raw)
			if err != nil {
				log.Warn("access token rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithIdentity(ctx, id)))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "Authentication required")
}
