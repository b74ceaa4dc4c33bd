package httpx

import "context"

// Identity is the decoded access-token payload attached to the request
// context by AuthnMiddleware.
type Identity struct {
	AccountID string
	Email     string
	Role      string
	SessionID string
	TokenID   string // jti of the presented access token
}

type identityKey struct{}

func contextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
