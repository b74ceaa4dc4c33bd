package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationExpires(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := NewMemoryAt(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.RevokeToken(ctx, "jti-1", time.Minute))

	revoked, err := m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// Past the entry's TTL the jti is clean again.
	now = now.Add(61 * time.Second)
	revoked, err = m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestMemoryRevokeNonPositiveTTLIsNoop(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.RevokeToken(ctx, "jti-dead", 0))
	revoked, err := m.IsRevoked(ctx, "jti-dead")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestMemoryCountAttemptFixedWindow(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := NewMemoryAt(func() time.Time { return now })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := m.CountAttempt(ctx, "login:a@x.com", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	// A fresh window restarts the count.
	now = now.Add(2 * time.Minute)
	got, err := m.CountAttempt(ctx, "login:a@x.com", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
}

func TestMemoryCountAttemptIsolatesKeys(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	_, err := m.CountAttempt(ctx, "a", time.Minute)
	require.NoError(t, err)

	got, err := m.CountAttempt(ctx, "b", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
}
