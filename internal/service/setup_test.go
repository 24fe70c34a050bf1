package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/clock"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/metrics"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
)

// ── 测试辅助 ──

func newTestConfig() *config.Config {
	return &config.Config{
		Dispatch: config.DispatchConfig{
			FillMissingContact: true,
			PlaceholderContact: "N/A",
			PlaceholderAddress: "Address not provided",
		},
		Attendance: config.AttendanceConfig{
			OnTimeCutoff: "09:30",
			HalfDayHours: 4.5,
			Timezone:     "UTC",
		},
		Notification: config.NotificationConfig{Capacity: 100, DefaultLimit: 50},
		Dependency:   config.DependencyConfig{Timeout: time.Second, RetryBackoff: time.Millisecond},
	}
}

type testEnv struct {
	store   *mockStore
	events  *notify.Store
	clock   *clock.Fake
	metrics *metrics.Metrics
	svc     *Service
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithConfig(t, newTestConfig())
}

func setupTestEnvWithConfig(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	return setupTestEnvWithLocker(t, cfg, nil)
}

// setupTestEnvWithLocker locker 为 nil 时使用默认进程内锁
func setupTestEnvWithLocker(t *testing.T, cfg *config.Config, locker Locker) *testEnv {
	t.Helper()
	store := newMockStore()
	events := notify.New(cfg.Notification.Capacity)
	t.Cleanup(events.Close)
	clk := clock.NewFake(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	m := metrics.New()

	svc := NewService(cfg, store.repository(), Deps{
		Store:   events,
		Metrics: m,
		Clock:   clk,
		Locker:  locker,
	}, zap.NewNop())

	return &testEnv{store: store, events: events, clock: clk, metrics: m, svc: svc}
}

// eventsOf 按类型取已发布的通知
func (e *testEnv) eventsOf(typ string) []notify.Event {
	var out []notify.Event
	for _, ev := range e.events.List(notify.Filter{Limit: e.events.Capacity()}) {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// at 测试日 2025-03-10 的 UTC 时刻
func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// noopLocker 不加锁，模拟多实例之间没有共享锁的情况
type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
