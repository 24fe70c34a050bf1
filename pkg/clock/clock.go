package clock

import (
	"sync"
	"time"
)

// Clock 当前时间来源，测试中可替换
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System 返回系统时钟
func System() Clock { return systemClock{} }

// Fake 可手动推进的时钟
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake 创建固定在 t 的时钟
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

// Now 实现 Clock
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set 设置当前时间
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance 推进时间
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
