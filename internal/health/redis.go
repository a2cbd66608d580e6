// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoClient is returned when a checker was built without a client.
var ErrNoClient = errors.New("health: no redis client")

// defaultPingTimeout bounds a ping when the caller's context has no deadline.
const defaultPingTimeout = time.Second

// RedisChecker checks the Redis instance backing the score cache and the
// distributed rate limiter.
type RedisChecker struct {
	client redis.Cmdable
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.Cmdable) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING to Redis.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrNoClient
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPingTimeout)
		defer cancel()
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
