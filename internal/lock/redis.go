// Package lock provides a Redis-backed mutex used to serialize occupancy
// mutations of one course time across server instances.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrTimeout is returned when the lock could not be acquired within the
// configured wait.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

// releaseScript deletes the key only if it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config controls lock timing.
type Config struct {
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait is the longest Lock blocks before returning ErrTimeout.
	Wait time.Duration
	// Retry is the polling interval while waiting.
	Retry time.Duration
}

// RedisLocker acquires locks with SET NX PX.
type RedisLocker struct {
	rdb *redis.Client
	cfg Config
	log *zap.Logger
}

// NewRedisLocker returns a locker over rdb. Zero config fields get
// defaults of 5s TTL, 3s wait and 50ms retry.
func NewRedisLocker(rdb *redis.Client, cfg Config, log *zap.Logger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 3 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 50 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{rdb: rdb, cfg: cfg, log: log}
}

// Lock blocks until key is acquired, ctx is done or the wait elapses. The
// returned func releases the lock and is safe to call once.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.NewTimer(l.cfg.Wait)
	defer deadline.Stop()
	tick := time.NewTicker(l.cfg.Retry)
	defer tick.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-tick.C:
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	// The request context may already be cancelled; release on our own.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		l.log.Warn("lock: release failed", zap.String("key", key), zap.Error(err))
	}
}
