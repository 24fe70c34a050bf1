package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/api/handler"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/api/middleware"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/metrics"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/redis"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// Setup 初始化并返回 Gin 路由引擎；rdb 为 nil 时门禁接口不限流
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		dto.RegisterValidations(v)
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", h.Health.Check)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 发货单模块
		dispatches := v1.Group("/dispatches")
		{
			dispatches.POST("", h.Dispatch.Create)
			dispatches.GET("", h.Dispatch.List)
			dispatches.GET("/:id", h.Dispatch.Get)
			dispatches.PUT("/:id/delivery-type", h.Dispatch.OverrideDeliveryType)
			dispatches.POST("/:id/process", h.Dispatch.Process)
			dispatches.POST("/:id/cancel", h.Dispatch.Cancel)
		}

		// 出门证模块
		gatePasses := v1.Group("/gate-passes")
		{
			gatePasses.GET("/:id", h.Dispatch.GetGatePass)
			gatePasses.POST("/:id/verify", h.Dispatch.VerifyGatePass)
		}

		// 运输任务模块
		transportJobs := v1.Group("/transport-jobs")
		{
			transportJobs.GET("/:id", h.Dispatch.GetTransportJob)
			transportJobs.PUT("/:id/status", h.Dispatch.UpdateTransportJob)
		}

		// 车辆模块
		vehicles := v1.Group("/vehicles")
		{
			vehicles.POST("", h.Vehicle.Create)
			vehicles.GET("", h.Vehicle.List)
			vehicles.GET("/:id", h.Vehicle.Get)
			vehicles.PUT("/:id", h.Vehicle.Update)
			vehicles.PUT("/by-number/:number/status", h.Vehicle.SetStatus)
		}

		// 门禁回调（设备侧高频调用，按来源 IP 限流）
		gate := v1.Group("/gate")
		if rdb != nil && cfg.RateLimit.GatePerMinute > 0 {
			gate.Use(middleware.RateLimit(rdb, cfg.RateLimit.GatePerMinute, time.Minute, logger))
		}
		{
			gate.POST("/entry", h.Attendance.GateEntry)
			gate.POST("/exit", h.Attendance.GateExit)
		}

		// 考勤模块
		attendance := v1.Group("/attendance")
		{
			attendance.GET("", h.Attendance.List)
			attendance.GET("/summary", h.Attendance.MonthlySummary)
			attendance.GET("/export", h.Export.ExportAttendance)
			attendance.POST("/mark-absent", h.Attendance.MarkAbsent)
		}

		// 通知模块
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.GET("/unread-count", h.Notification.UnreadCount)
			notifications.GET("/stream", h.Notification.Stream)
			notifications.PUT("/read-all", h.Notification.MarkAllRead)
			notifications.PUT("/:id/read", h.Notification.MarkRead)
		}

		// 系统配置模块
		systemConfig := v1.Group("/system-config")
		{
			systemConfig.GET("", h.SystemConfig.GetConfig)
			systemConfig.PUT("", h.SystemConfig.UpdateConfig)
		}
	}

	return r
}
