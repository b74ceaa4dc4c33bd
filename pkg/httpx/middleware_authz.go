package httpx

import "net/http"

// Platform role ladder, least to most privileged.
const (
	RoleUser       = "user"
	RoleEditor     = "editor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

var roleRank = map[string]int{
	RoleUser:       0,
	RoleEditor:     1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// KnownRole reports whether s names one of the platform roles.
func KnownRole(s string) bool {
	_, ok := roleRank[s]
	return ok
}

// RequireMinRole admits callers whose role sits at or above minimum on the
// ladder. Must run after AuthnMiddleware.
func RequireMinRole(minimum string) Middleware {
	want, wantKnown := roleRank[minimum]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			have, haveKnown := roleRank[id.Role]
			if !wantKnown || !haveKnown || have < want {
				WriteError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
