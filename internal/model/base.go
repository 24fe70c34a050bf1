package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ── PostgreSQL TIME 自定义类型 ──

// TimeOfDay 对应 PostgreSQL TIME 类型（不含日期与时区），精确到秒。
// 内部以当天零点起算的秒数存储，便于计算工时差。
type TimeOfDay int

// NewTimeOfDay 取时间戳在其自身时区下的时分秒。
func NewTimeOfDay(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ParseTimeOfDay 解析 HH:MM 或 HH:MM:SS。
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t), nil
		}
	}
	return 0, fmt.Errorf("TimeOfDay: invalid value %q", s)
}

// Hours 返回自零点起的小时数（含小数）。
func (t TimeOfDay) Hours() float64 {
	return float64(t) / 3600
}

// String 格式化为 HH:MM:SS。
func (t TimeOfDay) String() string {
	sec := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

// MarshalJSON 以 "HH:MM:SS" 输出。
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON 接受 "HH:MM" 或 "HH:MM:SS"。
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	v, err := ParseTimeOfDay(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Scan 将 PostgreSQL 返回的 TIME 值解析为 TimeOfDay。
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case time.Time:
		*t = NewTimeOfDay(v)
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("TimeOfDay.Scan: unsupported type %T", src)
	}
}

func (t *TimeOfDay) scanString(s string) error {
	// 去掉可能带出的微秒部分
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Value 序列化为 HH:MM:SS 文本。
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// DateOf 取 t 在 loc 时区下的日历日，归一为 UTC 零点，用于 PostgreSQL DATE 列。
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateLayout DATE 列的文本格式
const DateLayout = "2006-01-02"
