package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// LoginLimiter counts failed logins per username in Redis. A username is
// locked once it reaches maxAttempts failures inside window; the counter
// expires window after the first failure.
type LoginLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

// NewLoginLimiter constructs a LoginLimiter. Non-positive arguments use the defaults.
func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &LoginLimiter{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// key returns the Redis key for the given username. Usernames are
// case-sensitive in the users table, so the key uses them verbatim.
func key(username string) string {
	return "login_failures:" + username
}

// Locked reports whether username has used up its failed attempts.
func (l *LoginLimiter) Locked(ctx context.Context, username string) (bool, error) {
	n, err := l.client.Get(ctx, key(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("reading login failures for %s: %w", username, err)
	}
	return n >= l.maxAttempts, nil
}

// RecordFailure increments the failure counter. INCR and EXPIRE NX run in one
// transaction, so the counter always carries a TTL and the window starts at
// the first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username string) error {
	k := key(username)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording login failure for %s: %w", username, err)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if err := l.client.Del(ctx, key(username)).Err(); err != nil {
		return fmt.Errorf("resetting login failures for %s: %w", username, err)
	}
	return nil
}
