package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/keylock"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/redis"
)

// Locker 按业务键互斥（考勤按 员工+日期 加锁）。
// 单实例部署用进程内锁，多实例部署用 Redis 锁。
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NewLocalLocker 进程内锁
func NewLocalLocker() Locker {
	return keylock.New()
}

// distLock *redis.Client 的加锁能力
type distLock interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type redisLocker struct {
	client distLock
	ttl    time.Duration
	local  Locker
	logger *zap.Logger
}

// NewRedisLocker Redis 分布式锁，ttl 应大于一次考勤事务的最长耗时。
// Redis 调用出错时降级为进程内锁，唯一约束兜底跨实例重复。
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) Locker {
	return newRedisLocker(client, ttl, logger)
}

func newRedisLocker(client distLock, ttl time.Duration, logger *zap.Logger) *redisLocker {
	return &redisLocker{client: client, ttl: ttl, local: NewLocalLocker(), logger: logger}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.client.Lock(ctx, key, l.ttl)
	if err == nil {
		return unlock, nil
	}
	// 锁被占用或调用方超时不降级
	if errors.Is(err, redis.ErrLockNotAcquired) || ctx.Err() != nil {
		return nil, err
	}
	l.logger.Warn("Redis 加锁失败，降级为进程内锁", zap.String("key", key), zap.Error(err))
	return l.local.Lock(ctx, key)
}
