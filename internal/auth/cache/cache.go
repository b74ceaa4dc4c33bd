// Package cache abstracts the fast shared key-value store behind the token
// blacklist and the login-attempt counters. Production runs this on redis;
// tests and single-node dev use the in-memory driver.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// RevokeToken blacklists an access-token jti for ttl, which callers
	// set to the token's remaining lifetime so entries self-prune. A
	// non-positive ttl is a no-op: the token is already dead.
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether the jti is currently blacklisted.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// CountAttempt increments a fixed-window counter and returns the new
	// count. The window starts at the first increment and the key expires
	// with it. Callers treat errors as "allow" (fail open); the blacklist
	// checks above fail closed.
	CountAttempt(ctx context.Context, key string, window time.Duration) (int64, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
