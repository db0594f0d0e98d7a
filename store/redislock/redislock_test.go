package redislock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/schedule"
)

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "shift-engine:lock:shift:alice:2025-06-17", redisKey("shift:alice:2025-06-17"))
	assert.Equal(t, "shift-engine:lock:leave:alice:2025-06", redisKey("leave:alice:2025-06"))
}

func TestNew_DefaultTTL(t *testing.T) {
	l := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 0)
	t.Cleanup(func() { l.rdb.Close() })
	assert.Equal(t, 5*time.Second, l.ttl)
}

func TestLock_UnreachableServer_NotAConflict(t *testing.T) {
	// GIVEN: A client pointed at a closed port
	// WHEN: A lock is requested
	// THEN: The connection error surfaces and is not retried as contention

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })

	_, err := New(rdb, time.Second).Lock(context.Background(), "shift:alice:2025-06-17")
	require.Error(t, err)
	assert.False(t, schedule.IsRetryable(err))
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
