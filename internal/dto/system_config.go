package dto

// ── 系统配置模块 DTO ──

// UpdateSystemConfigRequest 更新考勤判定口径（nil 字段不修改）
type UpdateSystemConfigRequest struct {
	OnTimeCutoff *string  `json:"on_time_cutoff" binding:"omitempty,hhmm"`
	HalfDayHours *float64 `json:"half_day_hours" binding:"omitempty,gt=0,lte=24"`
}

// SystemConfigResponse 系统配置响应
type SystemConfigResponse struct {
	OnTimeCutoff string  `json:"on_time_cutoff"`
	HalfDayHours float64 `json:"half_day_hours"`
	UpdatedAt    string  `json:"updated_at"`
}
