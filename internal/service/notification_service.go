package service

import (
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/metrics"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
)

// 通知类型
const (
	NotifyDispatchReady        = "dispatch_ready"
	NotifyDriverAssigned       = "driver_assigned"
	NotifyGatePassVerified     = "gate_pass_verified"
	NotifyGatePassRejected     = "gate_pass_rejected"
	NotifyDeliveryStatusChange = "delivery_status_change"
	NotifyDriverAvailable      = "driver_available"
	NotifyDispatchCancelled    = "dispatch_cancelled"
	NotifyEmployeeCheckedIn    = "employee_checked_in"
	NotifyEmployeeLate         = "employee_late"
	NotifyAttendanceHalfDay    = "attendance_half_day"
	NotifyAbsentMarked         = "attendance_absent_marked"
)

// NotificationService 通知业务接口
//
// 通知只驻留内存（环形缓冲），由调度与考勤两个引擎在事务提交后发布。
type NotificationService interface {
	Publish(n Notification) notify.Event
	List(req *dto.NotificationListRequest) []notify.Event
	MarkRead(id uint64) bool
	MarkAllRead(department string) int
	UnreadCount(department string) int
	// Subscribe 实时订阅（websocket 推送、Service Bus 转发）
	Subscribe(buffer int) (<-chan notify.Event, func())
}

// Notification 待发布的通知
type Notification struct {
	Type       string
	Title      string
	Message    string
	Data       map[string]any
	Department string
	Priority   notify.Priority
}

type notificationService struct {
	store        *notify.Store
	defaultLimit int
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(store *notify.Store, defaultLimit int, m *metrics.Metrics, logger *zap.Logger) NotificationService {
	if defaultLimit <= 0 {
		defaultLimit = notify.DefaultLimit
	}
	return &notificationService{store: store, defaultLimit: defaultLimit, metrics: m, logger: logger}
}

func (s *notificationService) Publish(n Notification) notify.Event {
	ev := s.store.Publish(n.Type, n.Title, n.Message, n.Data, n.Department, n.Priority)
	s.metrics.ObserveNotification(ev.Department, ev.Type)
	s.logger.Debug("发布通知",
		zap.Uint64("id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("department", ev.Department),
		zap.String("priority", string(ev.Priority)),
	)
	return ev
}

func (s *notificationService) List(req *dto.NotificationListRequest) []notify.Event {
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	return s.store.List(notify.Filter{
		Department: req.Department,
		UnreadOnly: req.UnreadOnly,
		Limit:      limit,
	})
}

func (s *notificationService) MarkRead(id uint64) bool {
	return s.store.MarkRead(id)
}

func (s *notificationService) MarkAllRead(department string) int {
	n := s.store.MarkAllRead(department)
	s.logger.Info("批量标记通知已读", zap.String("department", department), zap.Int("updated", n))
	return n
}

func (s *notificationService) UnreadCount(department string) int {
	return s.store.UnreadCount(department)
}

func (s *notificationService) Subscribe(buffer int) (<-chan notify.Event, func()) {
	return s.store.Subscribe(buffer)
}

// publishAll 依次发布；调用方须保证事务已提交
func publishAll(ns NotificationService, list []Notification) {
	if ns == nil {
		return
	}
	for _, n := range list {
		ns.Publish(n)
	}
}
