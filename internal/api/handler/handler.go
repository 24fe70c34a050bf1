package handler

import (
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Dispatch     *DispatchHandler
	Attendance   *AttendanceHandler
	Vehicle      *VehicleHandler
	Notification *NotificationHandler
	SystemConfig *SystemConfigHandler
	Export       *ExportHandler
	Health       *HealthHandler
}

// NewHandler 创建 Handler 聚合；checks 为健康检查项（数据库、Redis 等）
func NewHandler(svc *service.Service, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{
		Dispatch:     NewDispatchHandler(svc.Dispatch),
		Attendance:   NewAttendanceHandler(svc.Attendance),
		Vehicle:      NewVehicleHandler(svc.Vehicle),
		Notification: NewNotificationHandler(svc.Notification, logger),
		SystemConfig: NewSystemConfigHandler(svc.SystemConfig),
		Export:       NewExportHandler(svc.Export),
		Health:       NewHealthHandler(checks),
	}
}
