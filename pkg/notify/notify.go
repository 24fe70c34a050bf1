package notify

import (
	"sync"
	"time"

	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/clock"
)

// Priority 通知优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority 未知优先级按 normal 处理（发布永不失败）
func ParsePriority(s string) Priority {
	switch p := Priority(s); p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p
	default:
		return PriorityNormal
	}
}

// 部门路由标签
const (
	DeptWatchman  = "watchman"
	DeptTransport = "transport"
	DeptSales     = "sales"
	DeptHR        = "hr"
)

// Event 通知事件（仅驻留内存，重启丢失）
type Event struct {
	ID         uint64         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	Department string         `json:"department"`
	Priority   Priority       `json:"priority"`
	Timestamp  time.Time      `json:"timestamp"`
	Read       bool           `json:"read"`
}

// Filter 列表查询条件，Department 与 UnreadOnly 在截断前生效
type Filter struct {
	Department string
	UnreadOnly bool
	Limit      int
}

const (
	// DefaultCapacity 默认环形缓冲容量
	DefaultCapacity = 100
	// DefaultLimit 列表默认条数
	DefaultLimit = 50
)

// Store 进程级有界通知日志。
// 所有读写都在同一把互斥锁内完成，淘汰、追加、读取彼此线性一致。
type Store struct {
	mu       sync.Mutex
	clock    clock.Clock
	capacity int
	events   []Event // 环形缓冲，head 指向最旧事件
	head     int
	size     int
	nextID   uint64
	subs     map[int]chan Event
	nextSub  int
	closed   bool
}

// Option Store 选项
type Option func(*Store)

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New 创建 Store，capacity <= 0 时使用默认容量
func New(capacity int, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		clock:    clock.System(),
		capacity: capacity,
		events:   make([]Event, capacity),
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity 缓冲容量
func (s *Store) Capacity() int { return s.capacity }

// Subscribers 当前订阅者数量
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Publish 追加事件，超出容量时静默淘汰最旧事件
func (s *Store) Publish(typ, title, message string, data map[string]any, department string, priority Priority) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ev := Event{
		ID:         s.nextID,
		Type:       typ,
		Title:      title,
		Message:    message,
		Data:       copyData(data),
		Department: department,
		Priority:   ParsePriority(string(priority)),
		Timestamp:  s.clock.Now(),
	}

	if s.size < s.capacity {
		s.events[(s.head+s.size)%s.capacity] = ev
		s.size++
	} else {
		s.events[s.head] = ev
		s.head = (s.head + 1) % s.capacity
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// 订阅方消费过慢时丢弃，不阻塞发布
		}
	}
	return ev
}

// List 按时间倒序返回事件
func (s *Store) List(f Filter) []Event {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, min(limit, s.size))
	for i := s.size - 1; i >= 0 && len(out) < limit; i-- {
		ev := s.events[(s.head+i)%s.capacity]
		if !matches(ev, f.Department, f.UnreadOnly) {
			continue
		}
		ev.Data = copyData(ev.Data)
		out = append(out, ev)
	}
	return out
}

// MarkRead 标记已读；事件存在即返回 true（已读事件重复标记同样返回 true）
func (s *Store) MarkRead(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.size; i++ {
		idx := (s.head + i) % s.capacity
		if s.events[idx].ID == id {
			s.events[idx].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead 标记部门（为空则全部）未读事件为已读，返回实际翻转条数
func (s *Store) MarkAllRead(department string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := 0; i < s.size; i++ {
		idx := (s.head + i) % s.capacity
		if matches(s.events[idx], department, true) {
			s.events[idx].Read = true
			n++
		}
	}
	return n
}

// UnreadCount 未读数量
func (s *Store) UnreadCount(department string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := 0; i < s.size; i++ {
		if matches(s.events[(s.head+i)%s.capacity], department, true) {
			n++
		}
	}
	return n
}

// Subscribe 订阅实时事件，buffer 为通道缓冲；返回的 cancel 可重复调用
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close 结束生命周期，关闭所有订阅通道
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func matches(ev Event, department string, unreadOnly bool) bool {
	if department != "" && ev.Department != department {
		return false
	}
	if unreadOnly && ev.Read {
		return false
	}
	return true
}

func copyData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
