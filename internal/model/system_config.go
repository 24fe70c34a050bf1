package model

// SystemConfig 系统配置表 — 对应 system_config（单行强类型，考勤判定口径）
type SystemConfig struct {
	Singleton    bool      `gorm:"primaryKey;default:true"                 json:"-"`
	OnTimeCutoff TimeOfDay `gorm:"type:time;not null;default:'09:30'"      json:"on_time_cutoff"`
	HalfDayHours float64   `gorm:"type:numeric(4,2);not null;default:4.5"  json:"half_day_hours"`
	BaseModel
}

// TableName 指定表名
func (SystemConfig) TableName() string { return "system_config" }
