package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyFormat  = "lm:cron-worker:lock:%s"
	minimumLockTTL = time.Minute
)

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a SETNX lock owned by one cron-worker process. The owner
// token is fixed for the life of the process so a restarted cycle can
// recognise its own stale lock.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
	held   bool
}

// LockKey scopes the cron lock to one deployment environment.
func LockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

// NewRedisLock constructs a Redis-backed lock. The TTL should outlive a full
// cycle; anything under a minute is raised to a minute.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl < minimumLockTTL {
		ttl = minimumLockTTL
	}
	host, _ := os.Hostname()
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		owner:  fmt.Sprintf("%s/%s", host, uuid.NewString()),
	}, nil
}

// Acquire returns true when this process holds the lock after the call.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		current, err := l.currentOwner(ctx)
		if err != nil {
			return false, err
		}
		ok = current == l.owner
	}
	l.held = ok
	return ok, nil
}

// Release deletes the key only while it still carries our owner token.
func (l *RedisLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	current, err := l.currentOwner(ctx)
	if err != nil || current != l.owner {
		return err
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

func (l *RedisLock) currentOwner(ctx context.Context) (string, error) {
	value, err := l.client.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock owner: %w", err)
	}
	return value, nil
}
