package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 业务与 HTTP 指标集合，使用独立 Registry 便于测试
type Metrics struct {
	registry *prometheus.Registry

	DispatchTransitions  *prometheus.CounterVec
	AttendanceEvents     *prometheus.CounterVec
	NotificationsPublish *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New 创建并注册指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		DispatchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Name:      "dispatch_transitions_total",
			Help:      "发货申请状态迁移次数",
		}, []string{"from", "to"}),
		AttendanceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Name:      "attendance_events_total",
			Help:      "门禁考勤事件处理次数",
		}, []string{"direction", "result"}),
		NotificationsPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Name:      "notifications_published_total",
			Help:      "发布的通知数量",
		}, []string{"department", "type"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Name:      "http_requests_total",
			Help:      "HTTP 请求数",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "erp",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		m.DispatchTransitions,
		m.AttendanceEvents,
		m.NotificationsPublish,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 暴露给测试读取
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDispatch 记录状态迁移，m 为 nil 时忽略
func (m *Metrics) ObserveDispatch(from, to string) {
	if m == nil {
		return
	}
	m.DispatchTransitions.WithLabelValues(from, to).Inc()
}

// ObserveAttendance 记录考勤事件结果
func (m *Metrics) ObserveAttendance(direction, result string) {
	if m == nil {
		return
	}
	m.AttendanceEvents.WithLabelValues(direction, result).Inc()
}

// ObserveNotification 记录通知发布
func (m *Metrics) ObserveNotification(department, typ string) {
	if m == nil {
		return
	}
	m.NotificationsPublish.WithLabelValues(department, typ).Inc()
}
