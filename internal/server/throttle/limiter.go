// Package throttle implements a fixed-window request limiter backed by
// Redis counters.
package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key fits the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type counter interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr, password string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// RedisLimiter allows at most limit hits per key in each window. Windows
// are aligned to multiples of the window length.
type RedisLimiter struct {
	rdb    counter
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter fails unless both limit and window are positive.
func NewRedisLimiter(rdb counter, limit int, window time.Duration) (*RedisLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("throttle limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("throttle window must be positive, got %s", window)
	}
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}, nil
}

func (l *RedisLimiter) Limit() int { return l.limit }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	k := "throttle:" + key + ":" + strconv.FormatInt(bucket, 10)

	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}

	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("redis expire: %w", err)
		}
	}

	return n <= int64(l.limit), nil
}
