// Package lock provides a Redis lock shared by every replica so only one of
// them runs a catalog sync at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:generate mockgen -destination=mocks/mock_lock.go -package=mocks -source=lock.go Locker

// Locker guards a critical section across processes
type Locker interface {
	// TryLock attempts to take the lock without waiting. The returned token
	// must be passed to Unlock. acquired is false when another holder owns it.
	TryLock(ctx context.Context) (token string, acquired bool, err error)

	// Unlock releases the lock if token still owns it
	Unlock(ctx context.Context, token string) error
}

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder
// can block other replicas.
func NewRedisLocker(client redis.UniversalClient, key string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}, nil
}

// TryLock implements Locker
func (l *RedisLocker) TryLock(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock implements Locker
func (l *RedisLocker) Unlock(ctx context.Context, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}
