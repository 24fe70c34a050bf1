package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/database"
	applogger "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "erp-core",
	Short: "发货调度、门禁考勤与通知核心服务",
	Long: `ERP 核心服务：发货状态机（出门证/运输任务）、门禁考勤对账、
部门通知扇出与车辆登记。`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(loadDotEnv)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 ./config/config.yaml）")
}

// loadDotEnv 读取 .env 供 viper 的 ERP_ 环境变量覆盖使用，文件不存在时忽略
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "读取 .env 失败: %v\n", err)
	}
}

// loadBase 加载配置并初始化日志
func loadBase() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

// openDB 连接数据库并执行迁移
func openDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
}
