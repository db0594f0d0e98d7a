/*
redislock.go - Distributed per-key lock on Redis

PURPOSE:
  Implements schedule.Locker across processes. A key is held by a unique
  token written with SET NX PX; release deletes the key only if it still
  holds our token, so an expired lock taken over by another process is
  never released by the old holder.

USAGE:
  rdb, _ := redislock.Dial(ctx, cfg.Redis)
  svc := schedule.NewService(store, engineCfg, schedule.WithLocker(redislock.New(rdb, cfg.Redis.LockTTL)))
*/
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/schedule"
)

const keyPrefix = "shift-engine:lock:"

// releaseScript deletes KEYS[1] only when it holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a schedule.Locker backed by Redis.
type Locker struct {
	rdb      redis.UniversalClient
	ttl      time.Duration
	interval time.Duration
	log      *logrus.Logger
}

var _ schedule.Locker = (*Locker)(nil)

// Dial connects to Redis and pings it.
func Dial(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// New creates a Locker. Locks expire after ttl if never released.
func New(rdb redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl, interval: 10 * time.Millisecond}
}

// WithLogger sets the logger used for release failures.
func (l *Locker) WithLogger(log *logrus.Logger) *Locker {
	l.log = log
	return l
}

// Lock blocks until key is acquired, ctx ends, or ttl elapses. Running out
// of time yields an error wrapping schedule.ErrConcurrencyConflict.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := redisKey(key)
	token := uuid.New().String()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: waiting for %s: %v", schedule.ErrConcurrencyConflict, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(k, token), nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s held elsewhere", schedule.ErrConcurrencyConflict, key)
		}

		select {
		case <-time.After(l.interval):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for %s: %v", schedule.ErrConcurrencyConflict, key, ctx.Err())
		}
	}
}

func (l *Locker) unlocker(k, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{k}, token).Err(); err != nil && l.log != nil {
			// The key expires on its own after ttl.
			l.log.WithError(err).WithField("key", k).Warn("redis lock release failed")
		}
	}
}

func redisKey(key string) string { return keyPrefix + key }
