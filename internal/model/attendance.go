package model

import "time"

// AttendanceRecord 考勤记录表 — 对应 attendance_records
// (employee_id, attendance_date) 唯一
type AttendanceRecord struct {
	AttendanceID   string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"attendance_id"`
	EmployeeID     string           `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_employee_date" json:"employee_id"`
	AttendanceDate time.Time        `gorm:"type:date;not null;uniqueIndex:uq_attendance_employee_date" json:"attendance_date"`
	CheckInTime    *TimeOfDay       `gorm:"type:time"                                                 json:"check_in_time,omitempty"`
	CheckOutTime   *TimeOfDay       `gorm:"type:time"                                                 json:"check_out_time,omitempty"`
	Status         AttendanceStatus `gorm:"type:varchar(20);not null"                                 json:"status"`
	HoursWorked    *float64         `gorm:"type:numeric(5,2)"                                         json:"hours_worked,omitempty"`
	Notes          string           `gorm:"type:text;not null;default:''"                             json:"notes"`
	BaseModel

	// 关联
	Employee *Employee `gorm:"foreignKey:EmployeeID;references:EmployeeID" json:"employee,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }
