package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RunLock is a cross-process mutex with a TTL taken around each batch run.
type RunLock interface {
	// Acquire returns ErrLockHeld when another holder owns name.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// NoopRunLock is used when Redis is unavailable; the CronExecution record remains the lock.
type NoopRunLock struct{}

func (NoopRunLock) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX PX.
type RedisRunLock struct {
	client *redis.Client
	prefix string
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client, prefix: "cronlock:"}
}

func (l *RedisRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("release run lock %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}
