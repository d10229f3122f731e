package framelock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const keyPrefix = "canvas:framelock:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds locks as Redis keys with a TTL so a crashed holder
// cannot wedge a frame. Calls go through a circuit breaker.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "framelock-redis",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &RedisLocker{client: client, ttl: ttl, wait: wait, cb: cb, logger: logger}
}

// NewRedisLockerFromURL parses a redis:// URL and connects.
func NewRedisLockerFromURL(url string, ttl, wait time.Duration, logger *zap.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisLocker(redis.NewClient(opts), ttl, wait, logger), nil
}

// Lock retries SET NX with backoff until the wait deadline.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Release, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	retryInterval := 25 * time.Millisecond

	for {
		ok, err := l.tryAcquire(ctx, redisKey, token)
		if err != nil {
			return nil, err
		}
		if ok {
			l.logger.Debug("Frame lock acquired", zap.String("key", key))
			return func() error { return l.release(redisKey, token) }, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-time.After(min(retryInterval, remaining)):
			if retryInterval < 500*time.Millisecond {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}
}

func (l *RedisLocker) tryAcquire(ctx context.Context, key, token string) (bool, error) {
	res, err := l.cb.Execute(func() (interface{}, error) {
		return l.client.SetNX(ctx, key, token, l.ttl).Result()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
		}
		l.logger.Warn("Frame lock acquire failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	return res.(bool), nil
}

func (l *RedisLocker) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release frame lock: %w", err)
	}
	if n == 0 {
		l.logger.Warn("Frame lock expired before release", zap.String("key", key))
	}
	return nil
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
