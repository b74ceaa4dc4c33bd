package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedisAgainstContainer runs the cache against a real redis. It needs a
// container runtime, so it is opt-in.
func TestRedisAgainstContainer(t *testing.T) {
	if os.Getenv("RUN_REDIS_INTEGRATION") == "" {
		t.Skip("set RUN_REDIS_INTEGRATION=1 to run")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisWithClient(client)
	require.NoError(t, c.Ping(ctx))

	require.NoError(t, c.RevokeToken(ctx, "jti-container", 2*time.Second))
	revoked, err := c.IsRevoked(ctx, "jti-container")
	require.NoError(t, err)
	require.True(t, revoked)

	count, err := c.CountAttempt(ctx, "login:container", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = c.CountAttempt(ctx, "login:container", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
