package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
)

const jobTimeout = 5 * time.Minute

// AbsentMarker 每日缺勤补记（service.AttendanceService 实现）
type AbsentMarker interface {
	MarkAbsent(ctx context.Context, req *dto.MarkAbsentRequest) (*dto.MarkAbsentResponse, error)
}

// Scheduler 后台定时任务
type Scheduler struct {
	cron   gocron.Scheduler
	marker AbsentMarker
	logger *zap.Logger
	ctx    context.Context
}

// New 按考勤配置注册每日缺勤补记任务，执行时刻按考勤时区解释
func New(cfg *config.AttendanceConfig, marker AbsentMarker, logger *zap.Logger) (*Scheduler, error) {
	at, err := time.Parse("15:04", cfg.AbsentJobTime)
	if err != nil {
		return nil, fmt.Errorf("attendance.absent_job_time 格式应为 HH:MM: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("attendance.timezone 无效: %w", err)
	}

	cron, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}

	s := &Scheduler{cron: cron, marker: marker, logger: logger, ctx: context.Background()}
	_, err = cron.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(at.Hour()), uint(at.Minute()), 0))),
		gocron.NewTask(s.markAbsent),
		gocron.WithName("mark-absent"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("注册缺勤补记任务失败: %w", err)
	}

	logger.Info("缺勤补记任务已注册", zap.String("at", cfg.AbsentJobTime), zap.String("timezone", loc.String()))
	return s, nil
}

// Run 启动调度并阻塞到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("关闭调度器失败: %w", err)
	}
	s.logger.Info("调度器已停止")
	return nil
}

// markAbsent 补记当日缺勤（日期由考勤引擎按时区取当天）
func (s *Scheduler) markAbsent() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	resp, err := s.marker.MarkAbsent(ctx, &dto.MarkAbsentRequest{})
	if err != nil {
		s.logger.Error("缺勤补记任务失败", zap.Error(err))
		return
	}
	s.logger.Info("缺勤补记任务完成", zap.String("date", resp.Date), zap.Int64("created", resp.Created))
}
