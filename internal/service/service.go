package service

import (
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/clock"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/metrics"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Dispatch     DispatchService
	Attendance   AttendanceService
	Vehicle      VehicleService
	Notification NotificationService
	SystemConfig SystemConfigService
	Export       ExportService
}

// Deps 聚合构造所需的基础设施
type Deps struct {
	Store   *notify.Store
	Metrics *metrics.Metrics
	Clock   clock.Clock // 为空时使用系统时钟
	Locker  Locker      // 为空时使用进程内锁
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	notifications := NewNotificationService(deps.Store, cfg.Notification.DefaultLimit, deps.Metrics, logger)

	return &Service{
		Dispatch:     NewDispatchService(cfg, repo, notifications, deps.Metrics, deps.Clock, logger),
		Attendance:   NewAttendanceService(cfg, repo, deps.Locker, notifications, deps.Metrics, deps.Clock, logger),
		Vehicle:      NewVehicleService(repo, cfg.Dependency, logger),
		Notification: notifications,
		SystemConfig: NewSystemConfigService(repo, cfg.Dependency, logger),
		Export:       NewExportService(repo, cfg.Dependency, logger),
	}
}
