package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/redis"
)

type fakeDistLock struct {
	err   error
	calls int
}

func (f *fakeDistLock) Lock(context.Context, string, time.Duration) (func(), error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return func() {}, nil
}

func TestRedisLocker_FallsBackOnRedisError(t *testing.T) {
	l := newRedisLocker(&fakeDistLock{err: errors.New("dial tcp 127.0.0.1:6379: connection refused")}, time.Second, zap.NewNop())

	unlock, err := l.Lock(context.Background(), "emp-1|2025-03-10")
	if err != nil {
		t.Fatalf("Redis 故障时应降级为进程内锁: %v", err)
	}

	// 降级后的锁仍然互斥
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "emp-1|2025-03-10"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("持有期间再次加锁应等待至超时，实际: %v", err)
	}

	unlock()
	unlock2, err := l.Lock(context.Background(), "emp-1|2025-03-10")
	if err != nil {
		t.Fatalf("释放后应可再次加锁: %v", err)
	}
	unlock2()
}

func TestRedisLocker_NoFallbackWhenHeld(t *testing.T) {
	held := &fakeDistLock{err: redis.ErrLockNotAcquired}
	l := newRedisLocker(held, time.Second, zap.NewNop())

	if _, err := l.Lock(context.Background(), "emp-1|2025-03-10"); !errors.Is(err, redis.ErrLockNotAcquired) {
		t.Errorf("锁被其他实例持有时不应降级，实际: %v", err)
	}
}

func TestRedisLocker_NoFallbackWhenCallerDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := newRedisLocker(&fakeDistLock{err: context.Canceled}, time.Second, zap.NewNop())

	if _, err := l.Lock(ctx, "emp-1|2025-03-10"); !errors.Is(err, context.Canceled) {
		t.Errorf("调用方已取消时应直接返回，实际: %v", err)
	}
}

func TestRedisLocker_UsesRedisWhenHealthy(t *testing.T) {
	fake := &fakeDistLock{}
	l := newRedisLocker(fake, time.Second, zap.NewNop())

	unlock, err := l.Lock(context.Background(), "emp-1|2025-03-10")
	if err != nil {
		t.Fatalf("加锁应成功: %v", err)
	}
	unlock()
	if fake.calls != 1 {
		t.Errorf("期望调用 Redis 1 次，实际 %d", fake.calls)
	}
}
