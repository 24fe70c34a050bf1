package dto

import "time"

// ── 门禁考勤模块 DTO ──

// GateEventRequest 门禁进出事件（手机号 / 工牌号 / 人脸 ID 至少一项）
type GateEventRequest struct {
	Phone     string     `json:"phone"     binding:"required_without_all=BadgeNo FaceID,omitempty,max=20"`
	BadgeNo   string     `json:"badge_no"  binding:"omitempty,max=50"`
	FaceID    string     `json:"face_id"   binding:"omitempty,max=100"`
	Timestamp *time.Time `json:"timestamp"` // 为空时取服务器当前时间
	DeviceID  string     `json:"device_id" binding:"omitempty,max=100"`
}

// AttendanceListRequest 考勤列表筛选（日期为闭区间，格式 YYYY-MM-DD）
type AttendanceListRequest struct {
	PaginationRequest
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	From       string `form:"from"        binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to"          binding:"omitempty,datetime=2006-01-02"`
	Status     string `form:"status"`
}

// AttendanceMonthRequest 月度汇总/导出参数
type AttendanceMonthRequest struct {
	Month string `form:"month" binding:"required,datetime=2006-01"`
}

// MarkAbsentRequest 补写缺勤请求，日期为空时取考勤时区的当天
type MarkAbsentRequest struct {
	Date string `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// AttendanceResponse 考勤记录响应
type AttendanceResponse struct {
	ID             string   `json:"id"`
	EmployeeID     string   `json:"employee_id"`
	EmployeeCode   string   `json:"employee_code,omitempty"`
	EmployeeName   string   `json:"employee_name,omitempty"`
	AttendanceDate string   `json:"attendance_date"`
	CheckInTime    string   `json:"check_in_time,omitempty"`
	CheckOutTime   string   `json:"check_out_time,omitempty"`
	Status         string   `json:"status"`
	HoursWorked    *float64 `json:"hours_worked,omitempty"`
	Notes          string   `json:"notes"`
	UpdatedAt      string   `json:"updated_at"`
}

// AttendanceSummaryItem 员工月度考勤汇总
type AttendanceSummaryItem struct {
	EmployeeID   string  `json:"employee_id"`
	EmployeeCode string  `json:"employee_code"`
	EmployeeName string  `json:"employee_name"`
	Present      int     `json:"present"`
	Late         int     `json:"late"`
	HalfDay      int     `json:"half_day"`
	Absent       int     `json:"absent"`
	TotalHours   float64 `json:"total_hours"`
}

// AttendanceSummaryResponse 月度汇总响应
type AttendanceSummaryResponse struct {
	Month string                  `json:"month"`
	Items []AttendanceSummaryItem `json:"items"`
}

// MarkAbsentResponse 补写缺勤结果
type MarkAbsentResponse struct {
	Date    string `json:"date"`
	Created int64  `json:"created"`
}
