package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	Dispatch     DispatchConfig     `mapstructure:"dispatch"`
	Attendance   AttendanceConfig   `mapstructure:"attendance"`
	Notification NotificationConfig `mapstructure:"notification"`
	Dependency   DependencyConfig   `mapstructure:"dependency"`
	ServiceBus   ServiceBusConfig   `mapstructure:"servicebus"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（为空时降级为进程内锁、关闭限流）
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DispatchConfig 发货状态机配置
type DispatchConfig struct {
	// FillMissingContact 为 true 时缺失的联系方式/地址以占位值补齐，否则拒绝发货
	FillMissingContact bool   `mapstructure:"fill_missing_contact"`
	PlaceholderContact string `mapstructure:"placeholder_contact"`
	PlaceholderAddress string `mapstructure:"placeholder_address"`
}

// AttendanceConfig 门禁考勤配置
type AttendanceConfig struct {
	OnTimeCutoff     string  `mapstructure:"on_time_cutoff"` // HH:MM
	HalfDayHours     float64 `mapstructure:"half_day_hours"`
	Timezone         string  `mapstructure:"timezone"`
	NotifyOnEntry    bool    `mapstructure:"notify_on_entry"`
	AbsentJobEnabled bool    `mapstructure:"absent_job_enabled"`
	AbsentJobTime    string  `mapstructure:"absent_job_time"` // HH:MM，每日执行
}

// Location 解析考勤时区
func (c *AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// NotificationConfig 通知环形缓冲配置
type NotificationConfig struct {
	Capacity     int `mapstructure:"capacity"`
	DefaultLimit int `mapstructure:"default_limit"`
}

// DependencyConfig 外部依赖调用（数据库、身份解析）超时与重试
type DependencyConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// ServiceBusConfig Azure Service Bus 配置（连接串为空时不启用）
type ServiceBusConfig struct {
	ConnectionString  string `mapstructure:"connection_string"`
	GateQueue         string `mapstructure:"gate_queue"`
	NotificationTopic string `mapstructure:"notification_topic"`
}

// Enabled 是否配置了 Service Bus
func (c *ServiceBusConfig) Enabled() bool {
	return c.ConnectionString != ""
}

// RateLimitConfig 门禁回调限流
type RateLimitConfig struct {
	GatePerMinute int `mapstructure:"gate_per_minute"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "erp_core")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("dispatch.fill_missing_contact", true)
	v.SetDefault("dispatch.placeholder_contact", "N/A")
	v.SetDefault("dispatch.placeholder_address", "Address not provided")

	v.SetDefault("attendance.on_time_cutoff", "09:30")
	v.SetDefault("attendance.half_day_hours", 4.5)
	v.SetDefault("attendance.timezone", "Asia/Kolkata")
	v.SetDefault("attendance.notify_on_entry", false)
	v.SetDefault("attendance.absent_job_enabled", true)
	v.SetDefault("attendance.absent_job_time", "23:30")

	v.SetDefault("notification.capacity", 100)
	v.SetDefault("notification.default_limit", 50)

	v.SetDefault("dependency.timeout", "5s")
	v.SetDefault("dependency.retry_backoff", "200ms")

	v.SetDefault("servicebus.connection_string", "")
	v.SetDefault("servicebus.gate_queue", "gate-events")
	v.SetDefault("servicebus.notification_topic", "erp-notifications")

	v.SetDefault("rate_limit.gate_per_minute", 120)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := time.Parse("15:04", c.Attendance.OnTimeCutoff); err != nil {
		return fmt.Errorf("配置校验失败: attendance.on_time_cutoff 格式应为 HH:MM: %w", err)
	}
	if c.Attendance.HalfDayHours <= 0 || c.Attendance.HalfDayHours > 24 {
		return fmt.Errorf("配置校验失败: attendance.half_day_hours 必须在 (0, 24] 之间")
	}
	if _, err := c.Attendance.Location(); err != nil {
		return fmt.Errorf("配置校验失败: attendance.timezone 无效: %w", err)
	}
	if c.Attendance.AbsentJobEnabled {
		if _, err := time.Parse("15:04", c.Attendance.AbsentJobTime); err != nil {
			return fmt.Errorf("配置校验失败: attendance.absent_job_time 格式应为 HH:MM: %w", err)
		}
	}
	if c.Notification.Capacity <= 0 {
		return fmt.Errorf("配置校验失败: notification.capacity 必须大于 0")
	}
	if c.Dependency.Timeout <= 0 {
		return fmt.Errorf("配置校验失败: dependency.timeout 必须大于 0")
	}
	return nil
}
