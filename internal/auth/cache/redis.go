package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedPrefix = "showcase:auth:revoked:"
	attemptPrefix = "showcase:auth:attempt:"

	// opTimeout bounds every cache round trip so a stalled redis cannot
	// stall a login.
	opTimeout = 2 * time.Second
)

// Fixed-window increment: the first INCR in a window arms the expiry so the
// counter and its lifetime are set atomically.
var attemptScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewRedisWithClient wraps an existing client. Used by tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.client.Set(ctx, revokedPrefix+jti, "1", ttl).Err()
}

func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := r.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) CountAttempt(ctx context.Context, key string, window time.Duration) (int64, error) {
	windowMS := int64(window / time.Millisecond)
	if windowMS <= 0 {
		return 0, fmt.Errorf("invalid attempt window %v", window)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := attemptScript.Run(ctx, r.client, []string{attemptPrefix + key}, windowMS).Result()
	if err != nil {
		return 0, err
	}

	count, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected redis response %T", res)
	}
	return count, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
