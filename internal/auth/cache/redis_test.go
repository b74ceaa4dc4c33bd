package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisWithClient(client), s
}

func TestRedisRevocation(t *testing.T) {
	c, s := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.RevokeToken(ctx, "jti-1", time.Minute))

	revoked, err := c.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = c.IsRevoked(ctx, "jti-other")
	require.NoError(t, err)
	require.False(t, revoked)

	// Blacklist entries self-prune at the token's own expiry.
	s.FastForward(61 * time.Second)
	revoked, err = c.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRedisRevokeNonPositiveTTLIsNoop(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.RevokeToken(ctx, "jti-dead", -time.Second))

	revoked, err := c.IsRevoked(ctx, "jti-dead")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRedisCountAttemptFixedWindow(t *testing.T) {
	c, s := newTestRedis(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.CountAttempt(ctx, "login:a@x.com", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	s.FastForward(61 * time.Second)
	got, err := c.CountAttempt(ctx, "login:a@x.com", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
}

func TestRedisCountAttemptRejectsBadWindow(t *testing.T) {
	c, _ := newTestRedis(t)

	_, err := c.CountAttempt(context.Background(), "k", 0)
	require.Error(t, err)
}
