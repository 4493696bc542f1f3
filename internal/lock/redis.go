package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compare-and-delete so we never free a lock we no longer hold.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a Redis lease (SET NX PX)
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryAcquire sets key=value with the lease TTL if the key is absent
func (l *RedisLocker) TryAcquire(ctx context.Context, key, value string, lease time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, value, lease).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes the key if it still carries the caller's value
func (l *RedisLocker) Release(ctx context.Context, key, value string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, value).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
