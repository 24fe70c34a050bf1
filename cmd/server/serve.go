package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/api/handler"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/api/router"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/messaging"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/scheduler"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/service"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/metrics"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/redis"
)

const (
	shutdownTimeout = 10 * time.Second
	// 考勤锁 TTL，需覆盖一次考勤事务的最长耗时
	attendanceLockTTL = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与后台任务",
	Long:  `启动 HTTP API、每日缺勤补记任务，以及（配置后）Service Bus 门禁事件消费与通知转发。`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadBase()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB(db)

	// Redis 可选：连接失败时降级为进程内锁且门禁接口不限流
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，降级为进程内锁", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	store := notify.New(cfg.Notification.Capacity)
	defer store.Close()

	m := metrics.New()
	deps := service.Deps{Store: store, Metrics: m}
	if rdb != nil {
		deps.Locker = service.NewRedisLocker(rdb, attendanceLockTTL, logger)
	}

	// 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, deps, logger)

	checks := map[string]handler.HealthCheck{"database": repo.Ping}
	if rdb != nil {
		checks["redis"] = rdb.Health
	}
	h := handler.NewHandler(svc, checks, logger)
	engine := router.Setup(cfg, h, rdb, m, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 后台组件先全部构建完成，避免 HTTP 已启动后初始化失败
	var sched *scheduler.Scheduler
	if cfg.Attendance.AbsentJobEnabled {
		if sched, err = scheduler.New(&cfg.Attendance, svc.Attendance, logger); err != nil {
			return err
		}
	}

	var bus *messaging.Bus
	if cfg.ServiceBus.Enabled() {
		if bus, err = messaging.Open(cfg.ServiceBus); err != nil {
			return err
		}
		defer bus.Close(context.Background())
		logger.Info("Service Bus 已启用",
			zap.String("gate_queue", cfg.ServiceBus.GateQueue),
			zap.String("notification_topic", cfg.ServiceBus.NotificationTopic),
		)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务器异常: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("开始优雅关闭...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// 先关闭通知源，结束 websocket 推送连接
		store.Close()
		return srv.Shutdown(sctx)
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	if bus != nil {
		if bus.Receiver != nil {
			consumer := messaging.NewGateConsumer(bus.Receiver, svc.Attendance, logger)
			g.Go(func() error { return consumer.Run(gctx) })
		}
		if bus.Sender != nil {
			forwarder := messaging.NewNotificationForwarder(bus.Sender, svc.Notification, logger)
			g.Go(func() error { return forwarder.Run(gctx) })
		}
	}

	if err := g.Wait(); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		return err
	}

	logger.Info("服务器已关闭")
	return nil
}
