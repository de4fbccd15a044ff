// Package idempotency remembers which messages a consumer already handled,
// so at-least-once deliveries (Pub/Sub redeliveries, Stripe webhook retries)
// take effect once.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/livemart/livemart-backend/pkg/redis"
)

// Guard stores one Redis key per (consumer, message id) for ttl. Keys look
// like lm:idempotency:handled:<consumer>:<id>.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// For binds the guard to one consumer name.
func (g *Guard) For(consumer string) *ConsumerGuard {
	return &ConsumerGuard{guard: g, consumer: strings.TrimSpace(consumer)}
}

// ConsumerGuard is a Guard scoped to a single consumer.
type ConsumerGuard struct {
	guard    *Guard
	consumer string
}

// Claim marks id as handled. It reports true only for the first claim
// within the ttl; later calls return false until the key expires or is
// released.
func (c *ConsumerGuard) Claim(ctx context.Context, id string) (bool, error) {
	key, err := c.key(id)
	if err != nil {
		return false, err
	}
	return c.guard.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), c.guard.ttl)
}

// Release forgets id so a failed delivery can be processed again.
func (c *ConsumerGuard) Release(ctx context.Context, id string) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	return c.guard.store.Del(ctx, key)
}

func (c *ConsumerGuard) key(id string) (string, error) {
	if c == nil || c.guard == nil {
		return "", errors.New("idempotency guard not configured")
	}
	if c.consumer == "" {
		return "", errors.New("consumer name is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("message id is required")
	}
	return c.guard.store.IdempotencyKey("handled:"+c.consumer, id), nil
}
