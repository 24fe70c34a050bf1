package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 指向无人监听的端口，连接立即被拒绝
func newUnreachableClient(t *testing.T) *Client {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb, zap.NewNop())
}

func TestLock_ConnectionErrorIsNotLockHeld(t *testing.T) {
	c := newUnreachableClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	unlock, err := c.Lock(ctx, "emp-1|2025-03-10", time.Second)

	require.Error(t, err)
	assert.Nil(t, unlock)
	assert.NotErrorIs(t, err, ErrLockNotAcquired, "连接错误不应被当作锁被占用")
	assert.Less(t, time.Since(start), time.Second, "连接错误应立即返回而不是轮询到超时")
}

func TestCheckRateLimit_ConnectionError(t *testing.T) {
	c := newUnreachableClient(t)

	allowed, err := c.CheckRateLimit(context.Background(), "ratelimit:gate:10.0.0.1", 5, time.Minute)
	require.Error(t, err)
	assert.False(t, allowed)
}

func TestHealth_ConnectionError(t *testing.T) {
	c := newUnreachableClient(t)
	assert.Error(t, c.Health(context.Background()))
}
